package domain

import "context"

type Service interface {
	// Snapshot returns the current-month dashboard view. A snapshot younger
	// than the configured TTL is served as-is unless forceRefresh is set.
	// Concurrent refreshes collapse into a single recomputation.
	Snapshot(ctx context.Context, forceRefresh bool) (*MetricsSnapshot, error)
	// Invalidate drops the cached snapshot so the next read recomputes.
	Invalidate()
}
