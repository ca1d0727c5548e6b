// Package flows contains pure-function orchestrators for the production
// strategy's multi-step operations.
//
// [RunAcquire] is the Token Acquisition Service: a silent attempt followed by
// at most one interactive fallback. [RunIdentitySync] is the Identity
// Synchronizer: fetch the backend profile and hand it to the session store.
// Each accepts a typed dependency struct and returns a Result carrying a
// FailureKind that the root package maps to metrics, audit and its public
// errors.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the identity provider, the profile
// endpoint and the session store. They do NOT own any of these resources;
// ownership stays with goSession.Production.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
//   - Retry beyond the two acquisition phases.
package flows
