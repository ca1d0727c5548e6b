// Package provider defines the boundary between the session manager and an
// external identity provider.
//
// The session manager never talks to a provider SDK directly. It depends on
// [IdentityProvider] for account discovery, silent token acquisition and the
// interactive login/logout redirects, and on [RedirectHandler] to complete an
// interactive login when control comes back. Subpackage oidc implements both
// on top of golang.org/x/oauth2 and coreos/go-oidc.
//
// # What this package must NOT do
//
//   - Import goSession or storage.
//   - Persist tokens.
package provider
