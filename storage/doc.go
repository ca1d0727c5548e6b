// Package storage holds the byte-level persistence for sessions and the
// Storage Guard that stands between raw bytes and the session store.
//
// # Backends
//
// [Backend] is a minimal key/value contract. Four implementations ship:
// [MemoryBackend] for tests and ephemeral processes, [FileBackend] for CLI
// tools (one 0600 file per key under the user config directory),
// [RedisBackend] for shared deployments and [BadgerBackend] for an embedded
// on-disk store.
//
// # Guard
//
// [Guard] decodes and validates everything it reads. A value that fails the
// envelope schema is deleted before the read returns, so the next read sees
// no session at all. Reads never fail: a corrupt value and an absent value
// look the same to the caller.
//
// # Architecture boundaries
//
// This package owns bytes, keys and validation on read. It does not decide
// what the session contains.
//
// # What this package must NOT do
//
//   - Import goSession (no upward imports).
//   - Return a partially valid envelope.
//   - Hand an unvalidated token to a caller.
package storage
