package autofill

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/rank"
	"github.com/metspa/network-buddy-sub000/pkg/apollo"
)

// Provider names recorded for cost accounting.
const (
	ProviderApollo   = "apollo"
	ProviderResearch = "research"
)

// Field names reported in the changed-field list.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldCompany   = "company"
	FieldJobTitle  = "jobTitle"
	FieldEmail     = "email"
	FieldPhone     = "phone"
)

// LeadershipSource supplies a company's decision makers. Satisfied by
// research.Service.
type LeadershipSource interface {
	Leadership(ctx context.Context, company string) ([]model.Executive, error)
}

// Result is the outcome of one resolve pass.
type Result struct {
	Record        *model.Record
	Scenario      Scenario
	ChangedFields []string
	Confidence    float64
	ProvidersUsed []string
	// UsedPremium is true when the premium contact-lookup provider was
	// actually invoked, found or not.
	UsedPremium bool
}

// Resolver fills record gaps scenario by scenario.
type Resolver struct {
	apollo   apollo.Client
	research LeadershipSource
}

// NewResolver creates a resolver over the premium contact-lookup client
// and a deep-research fallback. Either collaborator may be nil; a nil
// provider simply contributes nothing.
func NewResolver(apolloClient apollo.Client, research LeadershipSource) *Resolver {
	return &Resolver{apollo: apolloClient, research: research}
}

// Resolve classifies the record and runs the matching scenario handler.
// Fields that are already non-empty are never overwritten; provider
// errors and misses contribute nothing and never abort the pass.
func (r *Resolver) Resolve(ctx context.Context, rec *model.Record) (*Result, error) {
	filled := *rec
	res := &Result{Record: &filled, Scenario: Classify(rec)}
	log := zap.L().With(
		zap.String("record_id", rec.ID),
		zap.String("scenario", string(res.Scenario)),
	)

	switch res.Scenario {
	case ScenarioEmailOnly:
		r.resolveEmailOnly(ctx, res, log)
	case ScenarioCompanyOnly:
		r.resolveCompanyOnly(ctx, res, log)
	case ScenarioMissingContact:
		r.resolveMissingContact(ctx, res, log)
	case ScenarioDomainHint:
		r.resolveDomainHint(ctx, res, log)
	case ScenarioComplete:
		// Nothing to fill.
	}

	if len(res.ChangedFields) > 0 {
		res.Confidence = res.Scenario.Confidence()
		res.Record.AutoFilledFields = res.ChangedFields
		res.Record.AutoFillConfidence = res.Confidence
	}

	log.Info("autofill resolved",
		zap.Strings("changed", res.ChangedFields),
		zap.Strings("providers", res.ProvidersUsed),
		zap.Bool("used_premium", res.UsedPremium),
	)
	return res, nil
}

// Scenario 1: reverse-lookup by email; fill name, company, title, and
// phone if still absent.
func (r *Resolver) resolveEmailOnly(ctx context.Context, res *Result, log *zap.Logger) {
	person := r.matchPerson(ctx, res, log, apollo.MatchRequest{Email: res.Record.Email})
	if person == nil {
		return
	}
	r.adoptPerson(res, person, ProviderApollo)
}

// Scenario 2: people search at the company; fall back to deep research
// leadership, then a secondary contact lookup for missing email/phone.
func (r *Resolver) resolveCompanyOnly(ctx context.Context, res *Result, log *zap.Logger) {
	rec := res.Record

	var people []apollo.Person
	if r.apollo != nil {
		res.markProvider(ProviderApollo)
		res.UsedPremium = true
		found, err := r.apollo.SearchPeople(ctx, apollo.SearchRequest{OrganizationName: rec.Company})
		if err != nil {
			logProviderMiss(log, ProviderApollo, "people search", err)
		}
		people = found
	}

	if len(people) > 0 {
		best := bestCandidate(people)
		r.adoptPerson(res, &best, ProviderApollo)
	} else if r.research != nil {
		res.markProvider(ProviderResearch)
		execs, err := r.research.Leadership(ctx, rec.Company)
		if err != nil {
			logProviderMiss(log, ProviderResearch, "leadership", err)
		}
		if top, ok := rank.Top(execs); ok {
			first, last := splitName(top.Name)
			res.fillFrom(ProviderResearch, FieldFirstName, first)
			res.fillFrom(ProviderResearch, FieldLastName, last)
			res.fillFrom(ProviderResearch, FieldJobTitle, top.Title)
			res.fillFrom(ProviderResearch, FieldEmail, top.Email)
			res.fillFrom(ProviderResearch, FieldPhone, top.Phone)
		}
	}

	// Secondary lookup for whatever contact detail is still missing.
	if rec.HasIdentity() && (rec.Email == "" || rec.Phone == "") {
		person := r.matchPerson(ctx, res, log, apollo.MatchRequest{
			FirstName:        rec.FirstName,
			LastName:         rec.LastName,
			OrganizationName: rec.Company,
		})
		if person != nil {
			res.fillFrom(ProviderApollo, FieldEmail, person.Email)
			res.fillFrom(ProviderApollo, FieldPhone, person.Phone)
		}
	}
}

// Scenario 3: one contact lookup by name and company; fills only the
// missing contact fields.
func (r *Resolver) resolveMissingContact(ctx context.Context, res *Result, log *zap.Logger) {
	rec := res.Record
	person := r.matchPerson(ctx, res, log, apollo.MatchRequest{
		FirstName:        rec.FirstName,
		LastName:         rec.LastName,
		OrganizationName: rec.Company,
	})
	if person == nil {
		return
	}
	res.fillFrom(ProviderApollo, FieldEmail, person.Email)
	res.fillFrom(ProviderApollo, FieldPhone, person.Phone)
}

// Scenario 4: the email domain hints at the company unless it is a
// consumer mail provider.
func (r *Resolver) resolveDomainHint(ctx context.Context, res *Result, log *zap.Logger) {
	domain := EmailDomain(res.Record.Email)
	if r.apollo == nil || domain == "" || IsFreeMailDomain(domain) {
		return
	}

	res.markProvider(ProviderApollo)
	res.UsedPremium = true
	org, err := r.apollo.EnrichOrganization(ctx, domain)
	if err != nil {
		logProviderMiss(log, ProviderApollo, "organization enrich", err)
		return
	}
	res.fillFrom(ProviderApollo, FieldCompany, org.Name)
	res.fillFrom(ProviderApollo, FieldPhone, org.Phone)
}

func (r *Resolver) matchPerson(ctx context.Context, res *Result, log *zap.Logger, req apollo.MatchRequest) *apollo.Person {
	if r.apollo == nil {
		return nil
	}
	res.markProvider(ProviderApollo)
	res.UsedPremium = true
	person, err := r.apollo.MatchPerson(ctx, req)
	if err != nil {
		logProviderMiss(log, ProviderApollo, "person match", err)
		return nil
	}
	return person
}

func (r *Resolver) adoptPerson(res *Result, person *apollo.Person, provider string) {
	res.fillFrom(provider, FieldFirstName, person.FirstName)
	res.fillFrom(provider, FieldLastName, person.LastName)
	res.fillFrom(provider, FieldJobTitle, person.Title)
	res.fillFrom(provider, FieldEmail, person.Email)
	res.fillFrom(provider, FieldPhone, person.Phone)
	if person.Org != nil {
		res.fillFrom(provider, FieldCompany, person.Org.Name)
	}
}

// fill sets the field only when the incoming value is non-empty and the
// field is currently empty.
func (res *Result) fill(field, value string) bool {
	if value == "" {
		return false
	}

	var target *string
	rec := res.Record
	switch field {
	case FieldFirstName:
		target = &rec.FirstName
	case FieldLastName:
		target = &rec.LastName
	case FieldCompany:
		target = &rec.Company
	case FieldJobTitle:
		target = &rec.JobTitle
	case FieldEmail:
		target = &rec.Email
	case FieldPhone:
		target = &rec.Phone
	default:
		return false
	}

	if *target != "" {
		return false
	}
	*target = value
	res.ChangedFields = append(res.ChangedFields, field)
	return true
}

func (res *Result) fillFrom(provider, field, value string) {
	if res.fill(field, value) && res.Record.AutoFillSource == "" {
		res.Record.AutoFillSource = provider
	}
}

func (res *Result) markProvider(name string) {
	for _, p := range res.ProvidersUsed {
		if p == name {
			return
		}
	}
	res.ProvidersUsed = append(res.ProvidersUsed, name)
}

// bestCandidate picks the highest-authority person, first occurrence
// winning ties so output is reproducible.
func bestCandidate(people []apollo.Person) apollo.Person {
	best := 0
	bestScore := rank.Score(people[0].Title)
	for i := 1; i < len(people); i++ {
		if s := rank.Score(people[i].Title); s > bestScore {
			best, bestScore = i, s
		}
	}
	return people[best]
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func logProviderMiss(log *zap.Logger, provider, op string, err error) {
	log.Debug("autofill provider contributed nothing",
		zap.String("provider", provider),
		zap.String("op", op),
		zap.Error(err),
	)
}
