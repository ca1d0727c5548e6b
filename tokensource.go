package goSession

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

type authTokenSource struct {
	ctx  context.Context
	auth Authenticator
}

// NewTokenSource adapts a to oauth2.TokenSource. Every Token call asks a
// for a fresh token under ctx; an empty result is [ErrTokenUnavailable].
// The returned tokens carry no expiry, so do not wrap the source in
// oauth2.ReuseTokenSource.
func NewTokenSource(ctx context.Context, a Authenticator) oauth2.TokenSource {
	return authTokenSource{ctx: ctx, auth: a}
}

func (s authTokenSource) Token() (*oauth2.Token, error) {
	raw, err := s.auth.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrTokenUnavailable
	}
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
}

// NewHTTPClient returns a client that sends a's access token as a bearer
// token on every request. The base transport is taken from ctx the way
// oauth2.NewClient does.
func NewHTTPClient(ctx context.Context, a Authenticator) *http.Client {
	return oauth2.NewClient(ctx, NewTokenSource(ctx, a))
}
