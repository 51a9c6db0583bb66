package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/research"
	"github.com/metspa/network-buddy-sub000/pkg/apollo"
	"github.com/metspa/network-buddy-sub000/pkg/google"
	"github.com/metspa/network-buddy-sub000/pkg/proxycurl"
)

func TestApplyFanout_ProfilePrecedence(t *testing.T) {
	rec := &model.Record{}
	applyFanout(rec, fanout{
		Profile: &proxycurl.Profile{URL: "https://linkedin.com/in/primary"},
		Contact: &apollo.Person{LinkedInURL: "https://linkedin.com/in/secondary"},
	})
	assert.Equal(t, "https://linkedin.com/in/primary", rec.ProfileURL)

	rec = &model.Record{}
	applyFanout(rec, fanout{
		Contact: &apollo.Person{LinkedInURL: "https://linkedin.com/in/secondary"},
	})
	assert.Equal(t, "https://linkedin.com/in/secondary", rec.ProfileURL)
}

func TestApplyFanout_NeverOverwritesUserContact(t *testing.T) {
	rec := &model.Record{Email: "jane@acme.com", Phone: "555-0100"}
	applyFanout(rec, fanout{
		Contact: &apollo.Person{Email: "other@acme.com", Phone: "555-0999", Title: "Owner"},
	})
	assert.Equal(t, "jane@acme.com", rec.Email)
	assert.Equal(t, "555-0100", rec.Phone)
	assert.Equal(t, "Owner", rec.JobTitle)
}

// Settle the fan-out providers in every possible arrival order and check
// the merged record comes out identical each time.
func TestMerge_OrderIndependent(t *testing.T) {
	settlers := []func(*fanout){
		func(f *fanout) { f.Profile = &proxycurl.Profile{URL: "https://linkedin.com/in/jane"} },
		func(f *fanout) { f.Contact = &apollo.Person{Email: "jane@acme.com", Phone: "555-0100"} },
		func(f *fanout) {
			f.Research = &research.Result{
				Facts: &model.CompanyFacts{Industry: "Plumbing"},
				News:  []model.NewsItem{{Title: "Acme expands"}},
			}
		},
		func(f *fanout) { f.Social = map[string]string{"x": "https://x.com/acme"} },
	}

	merged := func(order []int) model.Record {
		var f fanout
		for _, i := range order {
			settlers[i](&f)
		}
		rec := model.Record{FirstName: "Jane", Company: "Acme"}
		applyFanout(&rec, f)
		return rec
	}

	baseline := merged([]int{0, 1, 2, 3})
	for _, order := range permutations([]int{0, 1, 2, 3}) {
		assert.Equal(t, baseline, merged(order), "order %v", order)
	}
}

func permutations(in []int) [][]int {
	if len(in) <= 1 {
		return [][]int{append([]int(nil), in...)}
	}
	var out [][]int
	for i := range in {
		rest := make([]int, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]int{in[i]}, p...))
		}
	}
	return out
}

func TestReputationFromPlace_CapsReviews(t *testing.T) {
	place := google.Place{
		Rating:          4.5,
		UserRatingCount: 120,
		Reviews: []google.Review{
			{Rating: 5, Text: google.LocalizedText{Text: "great"}},
			{Rating: 4, Text: google.LocalizedText{Text: "good"}},
			{Rating: 1, Text: google.LocalizedText{Text: "bad"}},
		},
		Photos: []google.Photo{{Name: "places/x/photos/1"}},
	}

	rep := reputationFromPlace(place, 2)
	assert.InDelta(t, 4.5, rep.Score, 0.001)
	assert.Equal(t, 120, rep.ReviewCount)
	require.Len(t, rep.Reviews, 2)
	assert.Equal(t, "great", rep.Reviews[0].Text)
	assert.Equal(t, []string{"places/x/photos/1"}, rep.Photos)
}

func TestApplyReputation_NilMeansAbsent(t *testing.T) {
	rec := &model.Record{}
	applyReputation(rec, nil)
	assert.Nil(t, rec.ReputationScore)
	assert.Zero(t, rec.ReviewCount)

	applyReputation(rec, &reputation{Score: 4.2, ReviewCount: 7})
	require.NotNil(t, rec.ReputationScore)
	assert.InDelta(t, 4.2, *rec.ReputationScore, 0.001)
}
