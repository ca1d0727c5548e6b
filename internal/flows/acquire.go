package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

// AcquireFailureKind classifies acquisition outcomes for root-level mapping.
type AcquireFailureKind int

const (
	AcquireFailureNone AcquireFailureKind = iota
	// AcquireFailureNoAccount: no account, nothing attempted.
	AcquireFailureNoAccount
	// AcquireFailureSilent: silent attempt failed and the interactive
	// redirect was started.
	AcquireFailureSilent
	// AcquireFailureInteractive: silent attempt failed and the redirect
	// could not be started either.
	AcquireFailureInteractive
	// AcquireFailureInvalidFormat: the provider returned a token that is
	// not three-segment shaped.
	AcquireFailureInvalidFormat
	// AcquireFailureAborted: the silent attempt ended with a context
	// error. No fallback was attempted.
	AcquireFailureAborted
)

// AcquireDeps captures acquisition flow dependencies.
type AcquireDeps struct {
	Scopes      []string
	Silent      func(ctx context.Context, account session.Account, scopes []string) (string, error)
	Interactive func(ctx context.Context, scopes []string) error
	Validate    func(candidate string) (token.Token, error)
	Now         func() time.Time
}

// AcquireResult carries either the token or failure metadata.
type AcquireResult struct {
	Failure    AcquireFailureKind
	Err        error
	SilentErr  error
	Token      token.Token
	Redirected bool
	Latency    time.Duration
}

// RunAcquire runs the silent attempt and, only if it fails, the interactive
// fallback. It never retries either phase. A silent failure caused by
// cancellation or a deadline is not a reason to redirect.
func RunAcquire(ctx context.Context, account *session.Account, deps AcquireDeps) AcquireResult {
	if account == nil {
		return AcquireResult{Failure: AcquireFailureNoAccount}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	raw, err := deps.Silent(ctx, *account, deps.Scopes)
	if err == nil {
		tok, verr := deps.Validate(raw)
		if verr != nil {
			return AcquireResult{
				Failure: AcquireFailureInvalidFormat,
				Err:     verr,
				Latency: now().Sub(start),
			}
		}
		return AcquireResult{Token: tok, Latency: now().Sub(start)}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return AcquireResult{
			Failure:   AcquireFailureAborted,
			Err:       err,
			SilentErr: err,
			Latency:   now().Sub(start),
		}
	}

	result := AcquireResult{
		Failure:   AcquireFailureSilent,
		Err:       err,
		SilentErr: err,
	}
	if ierr := deps.Interactive(ctx, deps.Scopes); ierr != nil {
		result.Failure = AcquireFailureInteractive
		result.Err = ierr
		result.Latency = now().Sub(start)
		return result
	}
	result.Redirected = true
	result.Latency = now().Sub(start)
	return result
}
