package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s := NewSealer("correct horse battery staple")

	sealed, err := s.Seal("ghp_token123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ghp_token123")

	plain, err := s.Unseal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ghp_token123", plain)
}

func TestSealer_SaltsEachSeal(t *testing.T) {
	s := NewSealer("pw")

	a, err := s.Seal("same")
	require.NoError(t, err)

	b, err := s.Seal("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSealer_UnsealErrors(t *testing.T) {
	sealed, err := NewSealer("right").Seal("token")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xff
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	tests := []struct {
		name   string
		sealer Sealer
		input  string
	}{
		{name: "wrong password", sealer: NewSealer("wrong"), input: sealed},
		{name: "not base64", sealer: NewSealer("right"), input: "%%%"},
		{name: "too short", sealer: NewSealer("right"), input: "c2hvcnQ"},
		{name: "tampered", sealer: NewSealer("right"), input: tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sealer.Unseal(tt.input)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
