package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/network-buddy-sub000/internal/model"
)

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		title string
		want  float64
	}{
		{"Owner", scoreOwner},
		{"Founder & CEO", scoreOwner},
		{"Co-Founder", scoreOwner},
		{"Chief Technology Officer", scoreOwner},
		{"President", scoreOwner},
		{"President & COO", scoreOwner},
		{"Managing Partner", scorePartnerVP},
		{"VP of Sales", scorePartnerVP},
		{"Vice President, Operations", scorePartnerVP},
		{"Senior Vice President", scorePartnerVP},
		{"Director of Marketing", scoreDirector},
		{"Head of Growth", scoreDirector},
		{"Account Manager", scoreManager},
		{"Sales Associate", scoreUnassigned},
		{"", scoreUnassigned},
		// "vp" must not match inside an unrelated word.
		{"Developer", scoreUnassigned},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.title))
		})
	}
}

func TestExecutives_FounderBeatsAssociate(t *testing.T) {
	got := Executives([]model.Executive{
		{Name: "Sam Seller", Title: "Sales Associate"},
		{Name: "Fran Founder", Title: "Founder"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Fran Founder", got[0].Name)
	assert.True(t, got[0].TopDecisionMaker)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "Sam Seller", got[1].Name)
	assert.False(t, got[1].TopDecisionMaker)
	assert.Equal(t, 2, got[1].Rank)
}

func TestExecutives_FounderOutranksVicePresident(t *testing.T) {
	got := Executives([]model.Executive{
		{Name: "Pat VP", Title: "Vice President, Operations"},
		{Name: "Jane Founder", Title: "Founder"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Jane Founder", got[0].Name)
	assert.True(t, got[0].TopDecisionMaker)
	assert.Equal(t, "Pat VP", got[1].Name)
	assert.False(t, got[1].TopDecisionMaker)
}

func TestExecutives_Deterministic(t *testing.T) {
	in := []model.Executive{
		{Name: "A", Title: "VP Sales"},
		{Name: "B", Title: "Owner"},
		{Name: "C", Title: "Director"},
		{Name: "D", Title: "CEO"},
	}

	first := Executives(in)
	for i := 0; i < 10; i++ {
		again := Executives(in)
		assert.Equal(t, first, again)
	}
}

func TestExecutives_TiesKeepInputOrder(t *testing.T) {
	got := Executives([]model.Executive{
		{Name: "First VP", Title: "VP Marketing"},
		{Name: "Second VP", Title: "VP Engineering"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "First VP", got[0].Name)
	assert.Equal(t, "Second VP", got[1].Name)
}

func TestExecutives_Empty(t *testing.T) {
	assert.Nil(t, Executives(nil))

	_, ok := Top(nil)
	assert.False(t, ok)
}

func TestTop(t *testing.T) {
	top, ok := Top([]model.Executive{
		{Name: "Dee Director", Title: "Director"},
		{Name: "Olive Owner", Title: "Owner"},
	})
	require.True(t, ok)
	assert.Equal(t, "Olive Owner", top.Name)
	assert.True(t, top.TopDecisionMaker)
}
