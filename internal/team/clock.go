package team

import (
	"context"
	"time"
)

// Clock abstracts time so backoff schedules are testable without sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is done, returning the
	// context's error in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return systemClock{} }
