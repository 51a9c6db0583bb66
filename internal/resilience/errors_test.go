package resilience

import (
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", eris.New("boom"), false},
		{"explicit transient", NewTransientError(eris.New("429"), 429), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("503"), 503), "call failed"), true},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"io timeout message", eris.New("read tcp 1.2.3.4: i/o timeout"), true},
		{"dns message", eris.New("dial tcp: lookup api.example.com: no such host"), true},
		{"validation error", eris.New("email is required"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := eris.New("inner")
	te := NewTransientError(inner, 500)
	assert.Equal(t, "inner", te.Error())
	assert.Equal(t, inner, te.Unwrap())
	assert.Equal(t, 500, te.StatusCode)
}
