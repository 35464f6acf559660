// api/models/auth_models.go
package models

import "github.com/golang-jwt/jwt/v5"

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// --- JWT Claims ---

// TokenClaims are the claims of tokens accepted by serve mode: the standard
// registered claims plus the token type.
type TokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// CountResponse is the body of GET /{table}/count/total.
type CountResponse struct {
	Total int64 `json:"total"`
}
