// Package auth resolves the current account from a locally stored access
// token.
package auth

import (
	"context"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/session"
)

var _ session.AccountProvider = (*TokenProvider)(nil)

// accountClaims captures the identity claims the play core needs.
type accountClaims struct {
	jwt.RegisteredClaims
	ProfileID   string `json:"profile_id"`
	ProfileName string `json:"profile_name"`
}

// TokenProvider reads account identity from a JWT access token stored on
// disk. The token is issued and verified server-side; this provider only
// extracts claims, so parsing is deliberately unverified.
type TokenProvider struct {
	path   string
	parser *jwt.Parser
}

// NewTokenProvider creates a provider reading the token at path.
func NewTokenProvider(path string) *TokenProvider {
	return &TokenProvider{
		path:   path,
		parser: jwt.NewParser(),
	}
}

// CurrentAccount returns the account encoded in the stored token. A missing
// token file means nobody is signed in and returns nil, nil.
func (p *TokenProvider) CurrentAccount(ctx context.Context) (*session.Account, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "read access token", err)
	}

	return p.parse(strings.TrimSpace(string(data)))
}

func (p *TokenProvider) parse(raw string) (*session.Account, error) {
	if raw == "" {
		return nil, nil
	}

	var claims accountClaims
	if _, _, err := p.parser.ParseUnverified(raw, &claims); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "parse access token", err)
	}
	if claims.Subject == "" {
		return nil, nil
	}

	return &session.Account{
		ID:          claims.Subject,
		ProfileID:   claims.ProfileID,
		ProfileName: claims.ProfileName,
	}, nil
}
