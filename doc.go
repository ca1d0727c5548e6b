// Package goSession manages a client-side authentication session: who is
// logged in, how that survives a restart, and how an access token is
// obtained for the current identity.
//
// A process picks one [Mode] at bootstrap and [Builder.Build] returns the
// matching [Authenticator]: [*Development] signs in a fixed mock user with a
// fixed token, [*Production] drives an OpenID Connect provider with silent
// token acquisition, an interactive redirect fallback and a backend profile
// sync. Both share one session.Store whose every mutation is written through
// a storage.Guard.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Authenticator], [Builder],
// [Config], errors, metrics and audit types. Multi-step orchestration lives
// in internal/flows; schema validation and the store live in session;
// bytes live in storage.
//
// # What this package must NOT do
//
//   - Persist access tokens in production mode.
//   - Surface silent-acquisition failures as errors from AccessToken.
//   - Switch modes after Build.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
