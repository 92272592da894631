package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/claimwildcats/internal/model"
)

// Session is a read-only snapshot of a signed-in user.
type Session struct {
	user     model.User
	token    string
	claims   *Claims
	provider *Provider
}

// User returns a copy of the signed-in account.
func (s *Session) User() model.User { return s.user }

// Token returns the session token stored in the browser cookie.
func (s *Session) Token() string { return s.token }

// ExpiresAt returns when the session token expires.
func (s *Session) ExpiresAt() time.Time {
	if s.claims == nil || s.claims.ExpiresAt == nil {
		return time.Time{}
	}
	return s.claims.ExpiresAt.Time
}

// IDToken mints a short-lived token for the items API. A new token is issued
// on every call.
func (s *Session) IDToken() (string, error) {
	p := s.provider
	tok, err := GenerateToken(p.secret, AudienceItemsAPI, claimsFor(&s.user), p.opts.IDTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issuing ID token: %w", err)
	}
	return tok, nil
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, or nil when signed out.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// CurrentIDToken returns a fresh ID token for the session in ctx, or "" when
// nobody is signed in. It has the shape of an apiclient token source.
func CurrentIDToken(ctx context.Context) (string, error) {
	s := SessionFrom(ctx)
	if s == nil {
		return "", nil
	}
	return s.IDToken()
}
