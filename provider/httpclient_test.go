package provider

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestTrimHexPrefixPadsOddLength(t *testing.T) {
	require.Equal(t, "0a", trimHexPrefix("0xa"))
	require.Equal(t, "abcd", trimHexPrefix("0xabcd"))
	require.Equal(t, "ab", trimHexPrefix("ab"))
}

func TestAuthTokenSignsWithSharedSecret(t *testing.T) {
	secret := []byte("test-secret-0123456789abcdef01")
	c := NewHTTPClient("http://localhost", secret, time.Second)

	token, err := c.authToken()
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return secret, nil })
	require.NoError(t, err)
	require.True(t, parsed.Valid)
}
