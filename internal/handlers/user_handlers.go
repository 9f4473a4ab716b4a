package handlers

import (
	"log/slog"
	"net/http"

	"github.com/01moynul/inventory-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

// LoginInput is the team credential posted to /v1/login.
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the shared team credential and issues a session token.
// POST /v1/login
func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Check Credentials ---
	// A denied session never says whether the username or the password was wrong.
	session := h.Gate.Login(input.Username, input.Password)
	h.Metrics.LoginAttempt(session.IsAuthenticated())
	if !session.IsAuthenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// 3. --- Generate JWT ---
	token, sessionID, err := h.Tokens.GenerateToken(session)
	if err != nil {
		h.Logger.Error("token generation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	// 4. --- Register the session so logout can revoke it ---
	if err := h.Sessions.Save(c.Request.Context(), sessionID, session.Username, h.Tokens.TTL()); err != nil {
		h.Logger.Error("session save failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	h.Logger.Info("login succeeded", slog.String("user", session.Username))

	// 5. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{
		"message":   "Login successful",
		"token":     token,
		"expiresIn": int(h.Tokens.TTL().Seconds()),
	})
}

// Logout revokes the current session; the token stops working immediately.
// POST /v1/logout
func (h *Handlers) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.SessionIDKey)
	if err := h.Sessions.Delete(c.Request.Context(), sessionID); err != nil {
		h.Logger.Error("session delete failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
		return
	}

	session := middleware.CurrentSession(c).Logout()
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out",
		"state":   session.State.String(),
	})
}

func currentUser(c *gin.Context) string {
	return middleware.CurrentSession(c).Username
}
