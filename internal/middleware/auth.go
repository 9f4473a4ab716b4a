package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/01moynul/inventory-tracker/internal/auth"
	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	SessionKey   = "session"
	SessionIDKey = "sessionID"
)

// AuthMiddleware creates a gin.HandlerFunc that acts as our "security guard".
// A request passes only with a valid bearer token whose session id is still live.
func AuthMiddleware(tokens *auth.TokenIssuer, sessions auth.SessionStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			c.Abort()
			return
		}
		tokenString := parts[1]

		// 2. --- Validate Token ---
		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. --- Check the session was not logged out ---
		username, ok, err := sessions.Lookup(c.Request.Context(), claims.ID)
		if err != nil {
			logger.Error("session lookup failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Session check failed"})
			c.Abort()
			return
		}
		if !ok || username != claims.Subject {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session has ended, please log in again"})
			c.Abort()
			return
		}

		// 4. --- Success ---
		c.Set(SessionKey, auth.Session{State: auth.Authenticated, Username: username})
		c.Set(SessionIDKey, claims.ID)
		c.Next()
	}
}

// CurrentSession returns the session placed on the context by AuthMiddleware,
// or an Anonymous session.
func CurrentSession(c *gin.Context) auth.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(auth.Session); ok {
			return s
		}
	}
	return auth.Session{State: auth.Anonymous}
}
