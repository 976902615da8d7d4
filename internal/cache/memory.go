package cache

import (
	"context"

	"github.com/OsiaDev/core/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// MemoryCache keeps telemetry in a sharded concurrent map. It is the default
// backend: per-key access without a global lock, entries live until
// overwritten or process restart.
type MemoryCache struct {
	entries cmap.ConcurrentMap[string, models.TelemetrySnapshot]
}

// NewMemoryCache creates an empty in-memory telemetry cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: cmap.New[models.TelemetrySnapshot](),
	}
}

// Get returns the last snapshot stored for the vehicle, if any.
func (m *MemoryCache) Get(_ context.Context, vehicleID string) (models.TelemetrySnapshot, bool, error) {
	snapshot, ok := m.entries.Get(vehicleID)
	return snapshot, ok, nil
}

// Set stores the snapshot, replacing any previous entry for the vehicle.
func (m *MemoryCache) Set(_ context.Context, vehicleID string, snapshot models.TelemetrySnapshot) error {
	m.entries.Set(vehicleID, snapshot)
	return nil
}
