package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/session"
)

// SyncFailureKind classifies identity sync failures.
type SyncFailureKind int

const (
	SyncFailureNone SyncFailureKind = iota
	SyncFailureNoAccount
	SyncFailureFetch
	// SyncFailureInvalidProfile: the fetch succeeded but returned no
	// profile or one that fails the user schema.
	SyncFailureInvalidProfile
	// SyncFailureStore: the user was applied in memory but the
	// write-through failed.
	SyncFailureStore
)

// SyncDeps captures identity sync dependencies.
type SyncDeps struct {
	FetchProfile func(ctx context.Context) (*session.User, error)
	SetUser      func(ctx context.Context, u *session.User) error
	// Validate defaults to session.ValidateUser.
	Validate func(u *session.User) error
}

// SyncResult carries the synced user or failure metadata.
type SyncResult struct {
	Failure SyncFailureKind
	Err     error
	User    *session.User
}

// RunIdentitySync fetches the backend profile for account and records it.
// A nil account is rejected before any fetch. A failed fetch or a profile
// that does not validate leaves the user untouched.
func RunIdentitySync(ctx context.Context, account *session.Account, deps SyncDeps) SyncResult {
	if account == nil {
		return SyncResult{Failure: SyncFailureNoAccount}
	}

	user, err := deps.FetchProfile(ctx)
	if err != nil {
		return SyncResult{Failure: SyncFailureFetch, Err: err}
	}
	if user == nil {
		return SyncResult{
			Failure: SyncFailureInvalidProfile,
			Err:     fmt.Errorf("%w: backend returned no profile", session.ErrSchemaViolation),
		}
	}

	validate := deps.Validate
	if validate == nil {
		validate = session.ValidateUser
	}
	if err := validate(user); err != nil {
		return SyncResult{Failure: SyncFailureInvalidProfile, Err: err}
	}

	if err := deps.SetUser(ctx, user); err != nil {
		return SyncResult{Failure: SyncFailureStore, Err: err, User: user}
	}
	return SyncResult{User: user}
}
