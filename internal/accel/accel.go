// Package accel decides whether a run uses GPU acceleration.
package accel

import (
	"context"
	"log/slog"
)

// DeviceCounter reports how many accelerator devices the runtime can use.
type DeviceCounter interface {
	Count(ctx context.Context) (int, error)
}

// DeviceCounterFunc adapts a function to DeviceCounter.
type DeviceCounterFunc func(ctx context.Context) (int, error)

// Count calls f.
func (f DeviceCounterFunc) Count(ctx context.Context) (int, error) { return f(ctx) }

// Decide returns the effective GPU preference. An explicitly set preference
// is returned unchanged without touching the device. Otherwise the counter
// is queried and the preference drops to false when the query fails or
// finds no device; with devices present the default stands. Decide never
// fails.
func Decide(ctx context.Context, explicitlySet, userPreference bool, counter DeviceCounter, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("gpu preference", "explicitly_set", explicitlySet, "use_gpu", userPreference)

	if explicitlySet {
		return userPreference
	}
	if counter == nil {
		logger.Warn("no device counter available, disabling gpu")
		return false
	}

	n, err := counter.Count(ctx)
	if err != nil {
		logger.Warn("cuda device query failed, set use_gpu=false", "error", err)
		return false
	}
	if n == 0 {
		logger.Info("no cuda device found, set use_gpu=false")
		return false
	}

	logger.Info("cuda devices available", "count", n)
	return userPreference
}
