// Package internal holds code that is intentionally private to goSession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for token acquisition and identity sync
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API except through
//     root-package aliases.
//   - Be imported by any package outside the goSession module.
package internal
