package flows

// Deps groups flow dependency sets. goSession.Production builds this once
// and delegates to the matching flow.
type Deps struct {
	Acquire AcquireDeps
	Sync    SyncDeps
}
