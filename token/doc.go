// Package token checks the shape of bearer tokens and mints the fixed
// development token.
//
// # Token format
//
// A token is accepted when it consists of exactly three dot-separated,
// non-empty segments drawn from the URL-safe alphabet [A-Za-z0-9_-]. The
// package never decodes a segment: signature and claim semantics belong to the
// identity provider and the backend.
//
// # Architecture boundaries
//
// This package owns the format check used before a token is accepted from a
// provider and before one is persisted. Persistence lives in storage; the
// acquisition protocol lives in internal/flows.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import goSession, session, or storage.
//   - Trust or interpret token payloads.
package token
