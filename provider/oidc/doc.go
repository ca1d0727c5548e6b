// Package oidc implements provider.IdentityProvider for any OpenID Connect
// issuer using the authorization-code flow with PKCE.
//
// Interactive login hands an authorization URL to a provider.Navigator and
// remembers the PKCE verifier and nonce under a random state value.
// [Provider.HandleRedirect] redeems the code, verifies the ID token and makes
// the resulting account active. Silent acquisition refreshes the cached
// oauth2 token; anything that would need the user again is reported as
// provider.ErrInteractionRequired.
//
// Tokens live in process memory only.
package oidc
