package apikeys

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mangable/mangable/pkg/mangable/auth"
	"github.com/mangable/mangable/pkg/mangable/models"
	"gorm.io/gorm"
)

// APIKeyHeader carries a full API key on authenticated requests
const APIKeyHeader = "X-API-Key"

// RequireAuth returns a middleware that resolves the request's
// credential to a user. Session tokens arrive as "Authorization:
// Bearer <token>", API keys in the X-API-Key header. When both are
// present the bearer token wins and a failed bearer token is never
// retried as an API key. Every failure produces the same response.
func RequireAuth(db *gorm.DB, issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := resolveCredential(c, db, issuer)
		if !ok {
			reject(c)
			return
		}

		var user models.User
		if err := db.Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
			reject(c)
			return
		}

		c.Set(auth.ContextKeyUserID, user.ID)
		c.Set(auth.ContextKeyEmail, user.Email)
		c.Set(auth.ContextKeyIsAdmin, user.IsAdmin)

		c.Next()
	}
}

func resolveCredential(c *gin.Context, db *gorm.DB, issuer *auth.TokenIssuer) (uuid.UUID, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return uuid.Nil, false
		}
		userID, err := issuer.Verify(parts[1])
		if err != nil {
			return uuid.Nil, false
		}
		return userID, true
	}

	if rawKey := c.GetHeader(APIKeyHeader); rawKey != "" {
		apiKey, err := ResolveKey(db, rawKey)
		if err != nil {
			return uuid.Nil, false
		}
		return apiKey.UserID, true
	}

	return uuid.Nil, false
}

// reject sends the uniform unauthorized response. The internal failure
// mode (missing, malformed, expired, revoked, bad signature) is
// deliberately not exposed.
func reject(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	c.Abort()
}
