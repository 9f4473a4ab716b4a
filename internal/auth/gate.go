package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/01moynul/inventory-tracker/internal/models"
)

// ErrAuthDenied is returned when a protected operation is attempted without
// an authenticated session. It never says which credential was wrong.
var ErrAuthDenied = errors.New("authentication required")

// SessionState is the lifecycle of a Session.
type SessionState int

const (
	Anonymous SessionState = iota
	Authenticated
	Denied
)

func (s SessionState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Denied:
		return "denied"
	}
	return "anonymous"
}

// Session is an explicit login state. It is passed around by value; there is
// no ambient "logged in" flag anywhere in the process.
type Session struct {
	State    SessionState
	Username string
}

// IsAuthenticated reports whether the session may use protected operations.
func (s Session) IsAuthenticated() bool { return s.State == Authenticated }

// Require returns ErrAuthDenied unless the session is authenticated.
func (s Session) Require() error {
	if !s.IsAuthenticated() {
		return ErrAuthDenied
	}
	return nil
}

// Logout clears all session state.
func (s Session) Logout() Session { return Session{State: Anonymous} }

// Gate checks credentials against the single shared team account.
type Gate struct {
	account models.Account
	logger  *slog.Logger
}

// NewGate builds a gate for one username and its bcrypt hash.
func NewGate(username, passwordHash string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		account: models.Account{Username: username, PasswordHash: passwordHash},
		logger:  logger,
	}
}

// Login verifies the credentials. The bcrypt comparison runs even when the
// username is wrong so both failure paths cost the same.
func (g *Gate) Login(username, password string) Session {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.account.Username)) == 1

	pw := models.Password{Hash: g.account.PasswordHash}
	passOK, err := pw.Matches(password)
	if err != nil {
		// malformed stored hash; treat as a mismatch
		g.logger.Error("password hash comparison failed", slog.String("error", err.Error()))
		passOK = false
	}

	if userOK && passOK {
		return Session{State: Authenticated, Username: g.account.Username}
	}
	return Session{State: Denied}
}

// HashPassword returns a bcrypt hash suitable for AUTH_PASSWORD_HASH.
func HashPassword(plaintext string) (string, error) {
	var pw models.Password
	if err := pw.Set(plaintext); err != nil {
		return "", err
	}
	return pw.Hash, nil
}
