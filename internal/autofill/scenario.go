// Package autofill fills identity and contact gaps on a record before
// enrichment runs, choosing providers from which fields are present.
package autofill

import "github.com/metspa/network-buddy-sub000/internal/model"

// Scenario names one of the five mutually exclusive gap patterns.
type Scenario string

const (
	// ScenarioEmailOnly: an email and nothing else; reverse-lookup the person.
	ScenarioEmailOnly Scenario = "email_only"
	// ScenarioCompanyOnly: a company but no person; find its decision maker.
	ScenarioCompanyOnly Scenario = "company_only"
	// ScenarioMissingContact: person and company known, email or phone missing.
	ScenarioMissingContact Scenario = "missing_contact"
	// ScenarioDomainHint: person and email known, company derivable from the
	// email domain.
	ScenarioDomainHint Scenario = "domain_hint"
	// ScenarioComplete: nothing to do.
	ScenarioComplete Scenario = "complete"
)

// Classify picks the scenario for a record. The checks run in priority
// order and are exhaustive: any record falls into exactly one scenario.
func Classify(rec *model.Record) Scenario {
	switch {
	case rec.Email != "" && !rec.HasIdentity() && rec.Company == "":
		return ScenarioEmailOnly
	case rec.Company != "" && !rec.HasIdentity():
		return ScenarioCompanyOnly
	case rec.HasIdentity() && rec.Company != "" && (rec.Email == "" || rec.Phone == ""):
		return ScenarioMissingContact
	case rec.HasIdentity() && rec.Email != "" && rec.Company == "":
		return ScenarioDomainHint
	default:
		return ScenarioComplete
	}
}

// Confidence returns the fixed heuristic confidence attached to fields
// filled under this scenario.
func (s Scenario) Confidence() float64 {
	switch s {
	case ScenarioEmailOnly:
		return 0.9
	case ScenarioCompanyOnly:
		return 0.6
	case ScenarioMissingContact:
		return 0.85
	case ScenarioDomainHint:
		return 0.7
	default:
		return 0
	}
}
