package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxSessionKey = "auth_session"

// CookieName returns the cookie that carries a role's token.
func CookieName(role string) string {
	return role + "_token"
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireRole admits requests carrying a live session of the given role,
// either in the role's cookie or as a bearer token.
func RequireRole(tokens TokenService, repo *Repo, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(CookieName(role))
		if raw == "" {
			raw = bearer(c)
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		s, err := repo.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		if s == nil || s.Role != role {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		c.Set(CtxSessionKey, s)
		c.Next()
	}
}

func MustGetSession(c *gin.Context) *Session {
	v, ok := c.Get(CtxSessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
