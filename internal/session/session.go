// Package session resolves the signed-in user from an HS256 ID token.
// The token is kept in a credential store between runs.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKey is the credential store key holding the ID token.
const TokenKey = "id-token"

var (
	// ErrSignedOut means no token is stored.
	ErrSignedOut = errors.New("signed out")

	// ErrInvalidToken means the stored or supplied token failed validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Session identifies the signed-in user. The zero value is signed out.
type Session struct {
	UserID string
	Email  string
}

// SignedIn reports whether s carries a user id.
func (s Session) SignedIn() bool {
	return s.UserID != ""
}

// Claims is the ID token payload. The user id travels in "sub".
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenStore is where the ID token is persisted.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Manager issues and validates ID tokens with a shared secret.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager returns a Manager signing with secret.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID valid for ttl. A zero ttl never expires.
func (m *Manager) Issue(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issuing token: empty user id")
	}

	now := m.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates token and returns the session it describes.
func (m *Manager) Parse(token string) (Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return Session{UserID: claims.Subject, Email: claims.Email}, nil
}

// Restore loads and validates the stored token. A missing token yields
// ErrSignedOut; lookup failures are treated the same way since the
// caller can only offer to sign in again.
func (m *Manager) Restore(store TokenStore) (Session, error) {
	token, err := store.Get(TokenKey)
	if err != nil || token == "" {
		return Session{}, ErrSignedOut
	}
	return m.Parse(token)
}

// SignIn validates token and stores it.
func (m *Manager) SignIn(store TokenStore, token string) (Session, error) {
	s, err := m.Parse(token)
	if err != nil {
		return Session{}, err
	}
	if err := store.Set(TokenKey, token); err != nil {
		return Session{}, fmt.Errorf("storing token: %w", err)
	}
	return s, nil
}

// SignOut forgets the stored token.
func SignOut(store TokenStore) error {
	if err := store.Delete(TokenKey); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
