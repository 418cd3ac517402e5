package store

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DefaultTimeout bounds a single store operation when none is configured.
const DefaultTimeout = 30 * time.Second

// Status is the activity shared by every store snapshot.
type Status struct {
	// Loading is true while at least one call is outstanding.
	Loading bool `json:"loading"`
	// Err is the failure of the most recent call, if it failed.
	Err *apperrors.AppError `json:"error,omitempty"`
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// normalize maps any failure onto an AppError so snapshots always carry the
// same shape. A call that got no response because its context ended is
// reported as the backend being unreachable.
func normalize(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NetworkUnavailable(err)
	}
	return apperrors.Internal(err)
}

// canceled reports whether a call failed because its caller gave up on it.
// Such a failure says nothing about the backend and must not change shared
// state.
func canceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
