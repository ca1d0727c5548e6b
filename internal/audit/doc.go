// Package audit implements async delivery of session lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//     Every event passes [Sanitize] first.
//   - [Sanitize]: rejects unknown event types, keeps allow-listed metadata keys and
//     redacts token-shaped text from error and metadata values.
//   - [Event]: structured record with ID, timestamp, type, mode, user, account and metadata.
//
// # Architecture boundaries
//
// This package owns the session event vocabulary, redaction, buffering and sink
// delivery. It does NOT decide when events are emitted; the authenticators in
// goSession do.
//
// # What this package must NOT do
//
//   - Suppress known event types based on business logic.
//   - Import goSession or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
