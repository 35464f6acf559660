// api/middleware/auth_middleware.go
package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apigen/api/models"
	"github.com/Annany2002/nebula-apigen/internal/auth"
)

// SubjectKey is the context key holding the authenticated token subject.
const SubjectKey = "subject"

// AuthMiddleware creates a gin middleware requiring a bearer access token
// minted by issuer. Failures are attached to the context and rendered by
// ErrorHandler as a 401 with a generic body.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			_ = c.Error(fmt.Errorf("%w: authorization header required", auth.ErrUnauthorized))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			_ = c.Error(fmt.Errorf("%w: authorization header format must be Bearer {token}", auth.ErrTokenMalformed))
			c.Abort()
			return
		}

		claims, err := issuer.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			customLog.Printf("AuthMiddleware: Token validation failed: %v", err)
			_ = c.Error(err)
			c.Abort()
			return
		}
		if claims.Type != models.TokenTypeAccess {
			customLog.Printf("AuthMiddleware: Rejected %s token for %s", claims.Type, claims.Subject)
			_ = c.Error(fmt.Errorf("%w: not an access token", auth.ErrTokenInvalid))
			c.Abort()
			return
		}

		customLog.Debugf("AuthMiddleware: Token validated successfully for subject: %s", claims.Subject)
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
