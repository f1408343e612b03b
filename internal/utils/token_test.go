package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("secret", 42, "ADMIN", 5)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.Exp, 5*time.Second)

    claims, err := ParseAccessToken("secret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), claims.UserID)
    assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
    good, err := NewAccessToken("secret", 42, "CUSTOMER", 5)
    require.NoError(t, err)
    expired, err := NewAccessToken("secret", 42, "CUSTOMER", -5)
    require.NoError(t, err)
    noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"}).SignedString([]byte("secret"))
    require.NoError(t, err)
    noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("secret"))
    require.NoError(t, err)
    unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(time.Hour).Unix()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)

    tests := map[string]struct{ secret, raw string }{
        "wrong secret": {"other", good.Token},
        "expired":      {"secret", expired.Token},
        "no exp":       {"secret", noExp},
        "no subject":   {"secret", noSub},
        "alg none":     {"secret", unsigned},
        "garbage":      {"secret", "not.a.jwt"},
    }
    for name, tt := range tests {
        t.Run(name, func(t *testing.T) {
            _, err := ParseAccessToken(tt.secret, tt.raw)
            assert.ErrorIs(t, err, ErrInvalidToken)
        })
    }
}

func TestParseAccessTokenNumericSubject(t *testing.T) {
    raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
        "sub": 7, "role": "CUSTOMER", "exp": time.Now().Add(time.Hour).Unix(),
    }).SignedString([]byte("secret"))
    require.NoError(t, err)
    claims, err := ParseAccessToken("secret", raw)
    require.NoError(t, err)
    assert.Equal(t, uint64(7), claims.UserID)
}
