package cache

import (
	"context"

	"github.com/OsiaDev/core/internal/models"
)

// TelemetryCache is the keyed last-known-good telemetry store. Reads for
// vehicles that were never written return ok=false, never an error. Writes
// are last-writer-wins per vehicle key; updates for one vehicle are already
// serialized by its single notification stream.
type TelemetryCache interface {
	Get(ctx context.Context, vehicleID string) (models.TelemetrySnapshot, bool, error)
	Set(ctx context.Context, vehicleID string, snapshot models.TelemetrySnapshot) error
}
