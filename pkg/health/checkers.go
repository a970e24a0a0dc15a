package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the number of goroutines exceeds threshold,
// which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// StalenessCheck fails when last reports a time older than maxAge, or the
// zero time. It suits background refresh loops.
func StalenessCheck(last func() time.Time, maxAge time.Duration) CheckFunc {
	return func(_ context.Context) error {
		t := last()
		if t.IsZero() {
			return errors.New("never refreshed")
		}
		if age := time.Since(t); age > maxAge {
			return errors.Errorf("last refresh %s ago exceeds %s", age.Truncate(time.Second), maxAge)
		}
		return nil
	}
}
