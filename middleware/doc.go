// Package middleware exposes HTTP middleware adapters that gate local
// handlers on the state of a goSession.Authenticator.
//
// # Guards
//
//   - [RequireSession]: rejects requests while no user is signed in.
//   - [RequireRole]: additionally requires a role on the signed-in user.
//   - [WithAccessToken]: acquires a bearer token and exposes it to the handler.
//
// Each guard reads the authenticator's current session and injects the user
// (and token, where acquired) into the request context.
//
// # Architecture boundaries
//
// This package translates authenticator state into HTTP status codes. It
// does NOT implement session logic itself; every decision is delegated to
// the Authenticator.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly.
//   - Access storage.
//   - Start login or logout flows.
//   - Write token material into responses or logs.
package middleware
