// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Annany2002/nebula-apigen/api/models"
	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/logger"
)

var (
	ErrTokenMalformed          = errors.New("malformed token")
	ErrTokenExpired            = errors.New("token is expired or not valid yet")
	ErrTokenInvalid            = errors.New("invalid token")
	ErrTokenClaimsInvalid      = errors.New("invalid token claims")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrUnexpectedSigningMethod = errors.New("unexpected token signing method")
	customLog                  = logger.NewLogger()
)

const issuer = "nebula-apigen"

// Issuer mints and verifies HMAC-signed tokens with the configured secret,
// algorithm and lifetimes.
type Issuer struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer builds an issuer from JWT_SECRET_KEY, JWT_ALGORITHM and the
// token lifetimes.
func NewIssuer(cfg *config.Config) (*Issuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET_KEY is not set")
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(cfg.JWTAlgorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported JWT_ALGORITHM '%s' (want HS256, HS384 or HS512)", cfg.JWTAlgorithm)
	}
	return &Issuer{
		secret:     []byte(cfg.JWTSecret),
		method:     method,
		accessTTL:  cfg.AccessTokenExpire,
		refreshTTL: cfg.RefreshTokenExpire,
	}, nil
}

// --- JWT Utilities ---

// GenerateAccessToken returns a short-lived token for subject.
func (i *Issuer) GenerateAccessToken(subject string) (string, error) {
	return i.generate(subject, models.TokenTypeAccess, i.accessTTL)
}

// GenerateRefreshToken returns a long-lived token for subject.
func (i *Issuer) GenerateRefreshToken(subject string) (string, error) {
	return i.generate(subject, models.TokenTypeRefresh, i.refreshTTL)
}

func (i *Issuer) generate(subject, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := models.TokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		customLog.Warnf("Error signing %s token for %s: %v", tokenType, subject, err)
		return "", fmt.Errorf("failed to generate token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, mapping library errors onto
// the package sentinels. Only tokens signed with the configured algorithm
// and carrying an expiry and a subject are accepted.
func (i *Issuer) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != i.method.Alg() {
			customLog.Warnf("ValidateToken: Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		customLog.Debugf("ValidateToken: Token parsing error: %v", err)
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenExpired
		case errors.Is(err, ErrUnexpectedSigningMethod):
			return nil, ErrUnexpectedSigningMethod
		default:
			return nil, ErrTokenInvalid
		}
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrTokenClaimsInvalid
	}
	return claims, nil
}
