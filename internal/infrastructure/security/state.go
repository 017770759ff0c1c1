package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

const (
	// StateCookieName carries the anti-forgery token between /auth and /auth/callback
	StateCookieName = "shopify_oauth_state"
	stateTokenBytes = 32
	stateTTL        = 10 * time.Minute
)

// StateManager issues and checks single-use OAuth state tokens.
// Tokens live only in the client cookie and are never stored server side.
type StateManager struct {
	secure bool
}

// NewStateManager creates a state manager. secure controls the cookie Secure flag
// and is only disabled for plain-HTTP local development.
func NewStateManager(secure bool) *StateManager {
	return &StateManager{secure: secure}
}

// Issue returns a fresh random state token
func (m *StateManager) Issue() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Validate reports whether the state echoed by the platform matches the cookie value
func (m *StateManager) Validate(received, stored string) bool {
	if received == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(stored)) == 1
}

// SetCookie writes the state cookie
func (m *StateManager) SetCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the state cookie. Called after every validation attempt.
func (m *StateManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// StoredState returns the cookie value, or "" when absent
func (m *StateManager) StoredState(r *http.Request) string {
	c, err := r.Cookie(StateCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
