package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-signing-secret-32bytes"

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken(99, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(99), claims.AccountID)
}

func TestParseToken_Rejections(t *testing.T) {
	good, err := GenerateToken(1, testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(1, testSecret, -time.Second)
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "some-other-secret"},
		{"expired", expired, testSecret},
		{"malformed", "not.a.jwt", testSecret},
		{"empty", "", testSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseToken(tc.token, tc.secret)
			assert.Error(t, err)
		})
	}
}

func TestTokensCarryTheirOwnAccount(t *testing.T) {
	t1, err := GenerateToken(1, testSecret, time.Hour)
	require.NoError(t, err)
	t2, err := GenerateToken(2, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, t1, t2)

	c1, err := ParseToken(t1, testSecret)
	require.NoError(t, err)
	c2, err := ParseToken(t2, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c1.AccountID)
	assert.Equal(t, int64(2), c2.AccountID)
}
