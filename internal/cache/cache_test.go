package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Normalization(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		same bool
	}{
		{
			name: "case and whitespace insensitive",
			a:    []string{"Acme Plumbing", "Jane  Doe"},
			b:    []string{"acme plumbing", " jane doe "},
			same: true,
		},
		{
			name: "tabs and newlines collapse",
			a:    []string{"Acme\tPlumbing\n"},
			b:    []string{"acme plumbing"},
			same: true,
		},
		{
			name: "different queries differ",
			a:    []string{"acme plumbing"},
			b:    []string{"acme roofing"},
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka := Key(KindContact, tt.a...)
			kb := Key(KindContact, tt.b...)
			if tt.same {
				assert.Equal(t, ka, kb)
			} else {
				assert.NotEqual(t, ka, kb)
			}
		})
	}
}

func TestKey_KindNamespaces(t *testing.T) {
	assert.NotEqual(t, Key(KindReviews, "acme"), Key(KindResearch, "acme"))
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, DefaultTTL(KindReviews, 7, 30))
	assert.Equal(t, 7*24*time.Hour, DefaultTTL(KindSocial, 7, 30))
	assert.Equal(t, 30*24*time.Hour, DefaultTTL(KindResearch, 7, 30))
	assert.Equal(t, 30*24*time.Hour, DefaultTTL(KindContact, 7, 30))
	// Zero config falls back to the built-in windows.
	assert.Equal(t, 7*24*time.Hour, DefaultTTL(KindReviews, 0, 0))
}

func TestMemoryStore_ExpiredEqualsNeverSet(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithNow(func() time.Time { return clock })

	require.NoError(t, m.Set(ctx, "k", KindReviews, []byte(`{"a":1}`), time.Hour))

	got, err := m.Get(ctx, "k", KindReviews)
	require.NoError(t, err)
	assert.True(t, got.Hit)
	assert.Equal(t, []byte(`{"a":1}`), got.Payload)

	// After expiry the read is indistinguishable from a never-set key.
	clock = clock.Add(2 * time.Hour)
	expired, err := m.Get(ctx, "k", KindReviews)
	require.NoError(t, err)
	never, err := m.Get(ctx, "absent", KindReviews)
	require.NoError(t, err)
	assert.Equal(t, never, expired)
	assert.False(t, expired.Hit)
}

func TestMemoryStore_Upsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", KindContact, []byte("one"), time.Hour))
	require.NoError(t, m.Set(ctx, "k", KindContact, []byte("two"), time.Hour))

	got, err := m.Get(ctx, "k", KindContact)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got.Payload)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithNow(func() time.Time { return clock })

	require.NoError(t, m.Set(ctx, "short", KindReviews, []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "long", KindResearch, []byte("b"), time.Hour))

	clock = clock.Add(30 * time.Minute)
	n, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	still, err := m.Get(ctx, "long", KindResearch)
	require.NoError(t, err)
	assert.True(t, still.Hit)
}
