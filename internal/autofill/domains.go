package autofill

import "strings"

// freeMailDomains are consumer mail providers whose domains carry no
// company signal.
var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"yahoo.co.uk":    {},
	"ymail.com":      {},
	"hotmail.com":    {},
	"hotmail.co.uk":  {},
	"outlook.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mac.com":        {},
	"proton.me":      {},
	"protonmail.com": {},
	"gmx.com":        {},
	"gmx.net":        {},
	"zoho.com":       {},
	"mail.com":       {},
	"yandex.com":     {},
	"fastmail.com":   {},
	"hey.com":        {},
}

// EmailDomain extracts the lower-cased domain of an email address, or ""
// when the address has no domain part.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// IsFreeMailDomain reports whether the domain belongs to a consumer mail
// provider.
func IsFreeMailDomain(domain string) bool {
	_, ok := freeMailDomains[strings.ToLower(domain)]
	return ok
}
