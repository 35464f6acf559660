package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-apigen/api/models"
	"github.com/Annany2002/nebula-apigen/config"
)

func issuerConfig(alg string) *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTAlgorithm:       alg,
		AccessTokenExpire:  30 * time.Minute,
		RefreshTokenExpire: 7 * 24 * time.Hour,
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	for _, alg := range []string{"HS256", "hs384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			iss, err := NewIssuer(issuerConfig(alg))
			require.NoError(t, err)

			access, err := iss.GenerateAccessToken("admin")
			require.NoError(t, err)
			claims, err := iss.ValidateToken(access)
			require.NoError(t, err)
			assert.Equal(t, "admin", claims.Subject)
			assert.Equal(t, models.TokenTypeAccess, claims.Type)
			assert.NotEmpty(t, claims.ID)
			assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, time.Minute)

			refresh, err := iss.GenerateRefreshToken("admin")
			require.NoError(t, err)
			claims, err = iss.ValidateToken(refresh)
			require.NoError(t, err)
			assert.Equal(t, models.TokenTypeRefresh, claims.Type)
			assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
		})
	}
}

func TestNewIssuer_Errors(t *testing.T) {
	_, err := NewIssuer(issuerConfig("RS256"))
	assert.Error(t, err)

	_, err = NewIssuer(issuerConfig("none"))
	assert.Error(t, err)

	cfg := issuerConfig("HS256")
	cfg.JWTSecret = ""
	_, err = NewIssuer(cfg)
	assert.Error(t, err)
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestIssuer_ValidateToken_Errors(t *testing.T) {
	iss, err := NewIssuer(issuerConfig("HS256"))
	require.NoError(t, err)
	now := time.Now()

	testCases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"malformed", "not-a-token", ErrTokenMalformed},
		{"empty", "", ErrTokenMalformed},
		{
			"expired",
			sign(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}),
			ErrTokenExpired,
		},
		{
			"not yet valid",
			sign(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)), NotBefore: jwt.NewNumericDate(now.Add(time.Hour))}),
			ErrTokenExpired,
		},
		{
			"wrong secret",
			sign(t, jwt.SigningMethodHS256, []byte("other-secret"), jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}),
			ErrTokenInvalid,
		},
		{
			"other algorithm",
			sign(t, jwt.SigningMethodHS512, []byte("test-secret"), jwt.RegisteredClaims{Subject: "admin", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}),
			ErrUnexpectedSigningMethod,
		},
		{
			"no expiry",
			sign(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{Subject: "admin"}),
			ErrTokenInvalid,
		},
		{
			"no subject",
			sign(t, jwt.SigningMethodHS256, []byte("test-secret"), jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}),
			ErrTokenClaimsInvalid,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := iss.ValidateToken(tc.token)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, claims)
		})
	}
}
