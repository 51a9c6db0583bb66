package enrich

import (
	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/research"
	"github.com/metspa/network-buddy-sub000/pkg/apollo"
	"github.com/metspa/network-buddy-sub000/pkg/google"
	"github.com/metspa/network-buddy-sub000/pkg/proxycurl"
)

// reputation is the Phase 1 result, cached as a unit.
type reputation struct {
	Score       float64        `json:"score"`
	ReviewCount int            `json:"review_count"`
	Reviews     []model.Review `json:"reviews"`
	Photos      []string       `json:"photos"`
}

// fanout collects the Phase 2/3 provider outputs. Each provider goroutine
// writes exactly one field, so the struct needs no lock; the merge runs
// only after every provider has settled.
type fanout struct {
	Profile  *proxycurl.Profile
	Contact  *apollo.Person
	Research *research.Result
	Social   map[string]string
}

// reputationFromPlace flattens the best place match into cacheable form.
func reputationFromPlace(place google.Place, maxReviews int) reputation {
	rep := reputation{
		Score:       place.Rating,
		ReviewCount: place.UserRatingCount,
	}
	for _, r := range place.Reviews {
		if maxReviews > 0 && len(rep.Reviews) >= maxReviews {
			break
		}
		rep.Reviews = append(rep.Reviews, model.Review{
			Author: r.AuthorAttribution.DisplayName,
			Rating: r.Rating,
			Text:   r.Text.Text,
		})
	}
	for _, p := range place.Photos {
		rep.Photos = append(rep.Photos, p.Name)
	}
	return rep
}

// applyReputation writes Phase 1 output onto the record. A nil reputation
// means the provider contributed nothing and the fields stay absent.
func applyReputation(rec *model.Record, rep *reputation) {
	if rep == nil {
		return
	}
	score := rep.Score
	rec.ReputationScore = &score
	rec.ReviewCount = rep.ReviewCount
	rec.Reviews = rep.Reviews
	rec.Photos = rep.Photos
}

// applyFanout merges the fan-out outputs onto the record. The merge is a
// pure function of the settled fanout struct, so provider completion
// order cannot affect the result.
//
// Precedence: the dedicated profile-search provider's URL beats one
// discovered incidentally by the contact lookup. User-supplied contact
// fields are never overwritten.
func applyFanout(rec *model.Record, f fanout) {
	if f.Profile != nil && f.Profile.URL != "" {
		rec.ProfileURL = f.Profile.URL
	} else if f.Contact != nil && f.Contact.LinkedInURL != "" {
		rec.ProfileURL = f.Contact.LinkedInURL
	}

	if f.Contact != nil {
		if rec.Email == "" {
			rec.Email = f.Contact.Email
		}
		if rec.Phone == "" {
			rec.Phone = f.Contact.Phone
		}
		if rec.JobTitle == "" {
			rec.JobTitle = f.Contact.Title
		}
	}

	if f.Research != nil {
		rec.CompanyFacts = f.Research.Facts
		rec.News = f.Research.News
	}

	if len(f.Social) > 0 {
		rec.SocialLinks = f.Social
	}
}

// derivedFields builds the partial-save column map for everything the
// orchestrator owns on the record. Absent values are written too, so a
// re-enrichment replaces stale derived data instead of leaving it behind.
func derivedFields(rec *model.Record) map[string]any {
	return map[string]any{
		"reputation_score": rec.ReputationScore,
		"review_count":     rec.ReviewCount,
		"reviews":          rec.Reviews,
		"photos":           rec.Photos,
		"profile_url":      rec.ProfileURL,
		"company_facts":    rec.CompanyFacts,
		"news":             rec.News,
		"social_links":     rec.SocialLinks,
		"email":            rec.Email,
		"phone":            rec.Phone,
		"job_title":        rec.JobTitle,
	}
}
