package provider

import (
	"context"
	"errors"
	"net/url"

	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrInteractionRequired means a token cannot be obtained without the
	// user: no cached provider session, an expired refresh token, missing
	// consent or scopes beyond the ones granted.
	ErrInteractionRequired = errors.New("provider: interaction required")
	// ErrStateMismatch is returned when a redirect carries an unknown or
	// expired state value.
	ErrStateMismatch = errors.New("provider: state mismatch")
	// ErrCallback is returned when the provider reports an error on the
	// redirect or the code exchange fails.
	ErrCallback = errors.New("provider: callback failed")
	// ErrTokenVerification is returned when the ID token does not verify.
	ErrTokenVerification = errors.New("provider: id token verification failed")
)

// IdentityProvider is the SDK boundary used by the production strategy.
type IdentityProvider interface {
	// ActiveAccount returns the provider's current signed-in account, or nil
	// when there is none.
	ActiveAccount(ctx context.Context) (*session.Account, error)
	// AcquireTokenSilent returns an access token for account without user
	// interaction. Failures that need the user wrap ErrInteractionRequired.
	AcquireTokenSilent(ctx context.Context, account session.Account, scopes []string) (string, error)
	// LoginRedirect starts an interactive login. Control leaves the process
	// through the configured Navigator.
	LoginRedirect(ctx context.Context, scopes []string) error
	// LogoutRedirect ends the provider session for account (all accounts
	// when nil).
	LogoutRedirect(ctx context.Context, account *session.Account) error
}

// RedirectHandler completes an interactive login from the callback URL the
// provider redirected to.
type RedirectHandler interface {
	HandleRedirect(ctx context.Context, callback *url.URL) (*session.Account, error)
}

// Navigator hands a URL to whatever can take the user there: a browser
// launcher, a terminal prompt or an HTTP redirect.
type Navigator func(ctx context.Context, target string) error
