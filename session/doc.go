// Package session owns the authenticated-principal model and the Session
// Store, the single mutable source of truth for who is logged in.
//
// # State
//
// [State] holds the current [User], the derived IsAuthenticated flag, the
// provider [Account] reference and the IsLoading flag. IsAuthenticated is
// always recomputed from User; no caller can set it directly.
//
// # Persistence
//
// Every mutation is written through a [Persister] before it is considered
// finished. [Envelope] is the persisted shape; [DecodeEnvelope] is the only
// way persisted bytes become an Envelope, and it rejects anything that does
// not fully satisfy the schema.
//
// # Architecture boundaries
//
// This package owns the model, schema validation and the store. Byte-level
// storage, token handling and provider interaction live elsewhere.
//
// # What this package must NOT do
//
//   - Import goSession, storage, provider, or token (no upward imports).
//   - Store access or refresh tokens in [State] or [Envelope].
package session
