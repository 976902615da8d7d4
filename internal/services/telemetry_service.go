package services

import (
	"context"
	"fmt"

	"github.com/OsiaDev/core/internal/cache"
	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
)

// TelemetryService repairs raw telemetry against the last-known-good cache
// and emits only fresh, fully-located movement events.
//
// The GCS reports 0.0 for any coordinate it did not receive. A zero axis is
// replaced from the cached snapshot when one exists; if either axis is still
// zero after repair the snapshot is cached (so a later report can repair
// from it) but never emitted. A repaired position identical to the cached
// one is dropped entirely, so downstream consumers only see movement.
type TelemetryService struct {
	// Dependencies
	cache     cache.TelemetryCache
	publisher *messaging.Publisher
	logger    zerolog.Logger
}

// NewTelemetryService creates the reconciliation pipeline.
func NewTelemetryService(telemetryCache cache.TelemetryCache, publisher *messaging.Publisher, logger zerolog.Logger) *TelemetryService {
	return &TelemetryService{
		cache:     telemetryCache,
		publisher: publisher,
		logger:    logger,
	}
}

// Process reconciles one raw telemetry notification. An error only means
// the cache was unreachable; the caller logs it and keeps the subscription
// alive regardless.
func (ts *TelemetryService) Process(ctx context.Context, raw gcs.RawTelemetry) error {
	snapshot := models.TelemetrySnapshot{
		VehicleID: raw.VehicleID,
		Location: models.DroneLocation{
			Latitude:  raw.Latitude,
			Longitude: raw.Longitude,
			Altitude:  raw.Altitude,
		},
		Fields:    raw.Fields,
		Timestamp: raw.Timestamp,
	}

	cached, haveCached, err := ts.cache.Get(ctx, raw.VehicleID)
	if err != nil {
		return fmt.Errorf("cache lookup for %s: %w", raw.VehicleID, err)
	}

	var prev models.DroneLocation
	if haveCached {
		prev = cached.Location
	}

	// Coordinate repair: a zero axis means "not reported", so reuse the
	// previous value for that axis.
	final := snapshot.Location
	if final.Latitude == 0.0 {
		final.Latitude = prev.Latitude
	}
	if final.Longitude == 0.0 {
		final.Longitude = prev.Longitude
	}
	if final.Altitude == 0.0 && prev.Altitude != 0.0 {
		final.Altitude = prev.Altitude
	}
	snapshot.Location = final

	// Still not fully located: accumulate in the cache, never emit.
	if final.Latitude == 0.0 || final.Longitude == 0.0 {
		if err := ts.cache.Set(ctx, raw.VehicleID, snapshot); err != nil {
			return fmt.Errorf("cache partial telemetry for %s: %w", raw.VehicleID, err)
		}
		ts.logger.Debug().Str("vehicle_id", raw.VehicleID).Msg("Partial telemetry cached (missing lat/lon)")
		return nil
	}

	// Duplicate suppression: same position as the cached snapshot means no
	// movement, so nothing is emitted or re-cached.
	if haveCached && prev.Latitude == final.Latitude && prev.Longitude == final.Longitude {
		ts.logger.Debug().Str("vehicle_id", raw.VehicleID).Msg("Skipping telemetry (same location as previous)")
		return nil
	}

	if err := ts.cache.Set(ctx, raw.VehicleID, snapshot); err != nil {
		return fmt.Errorf("cache telemetry for %s: %w", raw.VehicleID, err)
	}

	if err := ts.publisher.PublishTelemetry(snapshot); err != nil {
		// The cache already holds the snapshot; losing one bus emission
		// must not fail the stream.
		ts.logger.Error().Err(err).Str("vehicle_id", raw.VehicleID).Msg("Failed to publish telemetry")
		return nil
	}

	ts.logger.Debug().
		Str("vehicle_id", raw.VehicleID).
		Float64("latitude", final.Latitude).
		Float64("longitude", final.Longitude).
		Msg("Telemetry published")
	return nil
}
