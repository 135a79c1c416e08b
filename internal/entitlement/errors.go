package entitlement

import "errors"

// Infrastructure failures are errors; denial is a normal decision value.
// Every gated check fails closed when one of these surfaces.
var (
	// ErrStoreUnavailable wraps any store read/write failure. Callers deny
	// the gated action; tier and bonus resolution never default to paid or
	// bonus-eligible on error.
	ErrStoreUnavailable = errors.New("entitlement store unavailable")

	// ErrMembershipCheck wraps a failed live membership query once degraded
	// cache use is also exhausted.
	ErrMembershipCheck = errors.New("membership check failed")

	// ErrInvalidRequest marks unknown actions/personas and malformed admin
	// inputs. Rejected synchronously, never coerced.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflict marks a reconcile/downgrade write that lost a race after
	// one re-evaluation. Retryable by the caller.
	ErrConflict = errors.New("stale write conflict")
)
