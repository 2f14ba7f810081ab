// Package auth holds the canonical stored form of a user's catalog token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"trackbridge/internal/core"
)

var (
	// ErrNoAccessToken is returned when a provider token carries no access token.
	ErrNoAccessToken = errors.New("token has no access token")
	// ErrTokenExpired is returned by a non-refreshable token source once its token expired.
	ErrTokenExpired = errors.New("token expired and cannot be refreshed")
	// ErrTokenNotFound is returned by a TokenStore with no token for the user.
	ErrTokenNotFound = errors.New("token not found")
)

// StoredToken is a user's token for one catalog as persisted between runs.
type StoredToken struct {
	UserID       string       `json:"user_id"`
	Service      core.Service `json:"service"`
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	Expiry       time.Time    `json:"expiry,omitempty"`
}

// FromOAuth2 converts a provider token. A missing refresh token is valid; the
// result is then usable until it expires but cannot be renewed.
func FromOAuth2(userID string, service core.Service, token *oauth2.Token) (*StoredToken, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%s token for %s: %w", service, userID, ErrNoAccessToken)
	}

	return &StoredToken{
		UserID:       userID,
		Service:      service,
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}

// Refreshable reports whether the token can be renewed without the user.
func (t *StoredToken) Refreshable() bool {
	return t.RefreshToken != ""
}

// Expired reports whether the access token is no longer valid at now. A zero
// expiry never expires.
func (t *StoredToken) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// OAuth2 converts back to the provider form.
func (t *StoredToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// TokenSource returns a source for authenticated clients. Refreshable tokens
// renew through config; each renewed token is handed to onRefresh so it can
// be persisted. Non-refreshable tokens fail with ErrTokenExpired once expired.
func (t *StoredToken) TokenSource(ctx context.Context, config *oauth2.Config, onRefresh func(*StoredToken)) oauth2.TokenSource {
	if !t.Refreshable() {
		return &staticSource{token: t, now: time.Now}
	}
	return &refreshSource{
		base:      config.TokenSource(ctx, t.OAuth2()),
		last:      t.AccessToken,
		template:  *t,
		onRefresh: onRefresh,
	}
}

type staticSource struct {
	token *StoredToken
	now   func() time.Time
}

func (s *staticSource) Token() (*oauth2.Token, error) {
	if s.token.Expired(s.now()) {
		return nil, fmt.Errorf("%s token for %s: %w", s.token.Service, s.token.UserID, ErrTokenExpired)
	}
	return s.token.OAuth2(), nil
}

// refreshSource reports renewed tokens.
type refreshSource struct {
	mu        sync.Mutex
	base      oauth2.TokenSource
	last      string
	template  StoredToken
	onRefresh func(*StoredToken)
}

func (s *refreshSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if s.onRefresh != nil {
			renewed := s.template
			renewed.AccessToken = token.AccessToken
			renewed.TokenType = token.TokenType
			renewed.Expiry = token.Expiry
			// Providers may omit the refresh token on renewal.
			if token.RefreshToken != "" {
				renewed.RefreshToken = token.RefreshToken
			}
			s.onRefresh(&renewed)
		}
	}
	return token, nil
}

// TokenStore persists user tokens.
type TokenStore interface {
	Load(ctx context.Context, userID string, service core.Service) (*StoredToken, error)
	Save(ctx context.Context, token *StoredToken) error
}
