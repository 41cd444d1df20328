/*
auth.go - Session tokens and authentication middleware

PURPOSE:
  Issues signed session tokens at login and turns the Authorization
  header back into an explicit tasks.Session on every request. Handlers
  never look at the token; they read the session from the request
  context.

TOKEN:
  HS256 JWT carrying the username, display name, role, and department.
  The secret and lifetime come from config (auth.secret, auth.token_ttl).

SEE ALSO:
  - handlers.go: Login endpoint
  - tasks/session.go: The Session type
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/checkboard/delegation-engine/tasks"
)

type contextKey string

const sessionKey contextKey = "session"

// sessionClaims is the JWT payload for a logged-in user.
type sessionClaims struct {
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Department  string `json:"department,omitempty"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer with the given HMAC secret and
// token lifetime.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the session.
func (ti *TokenIssuer) Issue(s tasks.Session) (string, error) {
	now := ti.now()
	claims := sessionClaims{
		DisplayName: s.DisplayName,
		Email:       s.Email,
		Department:  s.Department,
		Role:        string(s.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Verify parses a token back into a session.
func (ti *TokenIssuer) Verify(token string) (tasks.Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		return tasks.Session{}, err
	}
	if !parsed.Valid {
		return tasks.Session{}, fmt.Errorf("invalid token")
	}
	return tasks.Session{
		Username:    claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		Department:  claims.Department,
		Role:        tasks.ParseRole(claims.Role),
	}, nil
}

// RequireSession rejects requests without a valid bearer token and
// stores the decoded session in the request context.
func (ti *TokenIssuer) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		session, err := ti.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid session token", err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin sessions. Must run after RequireSession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !SessionFrom(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFrom returns the session stored by RequireSession, or the
// zero session when absent.
func SessionFrom(ctx context.Context) tasks.Session {
	s, _ := ctx.Value(sessionKey).(tasks.Session)
	return s
}
