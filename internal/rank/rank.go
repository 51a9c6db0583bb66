// Package rank orders candidate executives by title-derived authority.
// Ranking is pure and deterministic: no network, no cache, no clock.
package rank

import (
	"sort"
	"strings"

	"github.com/metspa/network-buddy-sub000/internal/model"
)

// Authority score bands. Keywords are matched case-insensitively against
// the whole title, so "Co-Founder & CTO" scores at the top band.
const (
	scoreOwner      = 100.0
	scorePartnerVP  = 70.0
	scoreDirector   = 50.0
	scoreManager    = 30.0
	scoreUnassigned = 10.0
)

var scoreBands = []struct {
	score    float64
	keywords []string
}{
	{scoreOwner, []string{
		"owner", "founder", "co-founder", "cofounder",
		"ceo", "chief executive", "cfo", "chief financial",
		"coo", "chief operating", "cto", "chief technology",
		"cmo", "chief marketing", "chief", "principal",
	}},
	{scorePartnerVP, []string{
		"partner", "vice president", "vp", "svp", "evp", "managing member",
	}},
	{scoreDirector, []string{
		"director", "head of",
	}},
	{scoreManager, []string{
		"manager", "lead",
	}},
}

// Score returns the authority score for a title.
func Score(title string) float64 {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return scoreUnassigned
	}
	// "president" sits in the top band but is a substring of
	// "vice president", so it cannot live in the keyword table.
	if containsWord(t, "president") && !containsWord(t, "vice president") {
		return scoreOwner
	}
	for _, band := range scoreBands {
		for _, kw := range band.keywords {
			if containsWord(t, kw) {
				return band.score
			}
		}
	}
	return scoreUnassigned
}

// containsWord matches kw against t on word boundaries so "vp" does not
// match inside "developer".
func containsWord(t, kw string) bool {
	idx := 0
	for {
		i := strings.Index(t[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isAlnum(t[start-1])
		afterOK := end == len(t) || !isAlnum(t[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(t) {
			return false
		}
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// Executives scores and orders candidates by descending authority. Ties
// keep input order (stable sort) so repeated calls on the same input give
// identical output. The top-ranked entry is flagged as the primary
// decision maker.
func Executives(candidates []model.Executive) []model.RankedExecutive {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]model.RankedExecutive, len(candidates))
	for i, c := range candidates {
		ranked[i] = model.RankedExecutive{
			Executive: c,
			Score:     Score(c.Title),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	ranked[0].TopDecisionMaker = true

	return ranked
}

// Top returns the primary decision maker from a candidate list, or false
// when the list is empty.
func Top(candidates []model.Executive) (model.RankedExecutive, bool) {
	ranked := Executives(candidates)
	if len(ranked) == 0 {
		return model.RankedExecutive{}, false
	}
	return ranked[0], true
}
