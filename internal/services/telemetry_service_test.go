package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestPublisher(mqttClient *MockMQTTClient) *messaging.Publisher {
	return messaging.NewPublisher(mqttClient, messaging.Topics{
		Telemetry:       "telemetry",
		CommandResults:  "command-results",
		VehicleStatus:   "vehicle-status",
		MissionComplete: "mission-complete",
	}, 1, zerolog.Nop())
}

func cachedSnapshot(vehicleID string, lat, lon, alt float64) models.TelemetrySnapshot {
	return models.TelemetrySnapshot{
		VehicleID: vehicleID,
		Location:  models.DroneLocation{Latitude: lat, Longitude: lon, Altitude: alt},
		Timestamp: time.Now().Add(-time.Second),
	}
}

// TestTelemetryService_RepairsZeroCoordinatesFromCache verifies that axes
// reported as zero are replaced from the cached snapshot before emission.
func TestTelemetryService_RepairsZeroCoordinatesFromCache(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(cachedSnapshot("drone-1", 10.5, 20.25, 30.0), true, nil)
	mockCache.On("Set", mock.Anything, "drone-1", mock.MatchedBy(func(s models.TelemetrySnapshot) bool {
		return s.Location.Latitude == 10.5 && s.Location.Longitude == 21.0 && s.Location.Altitude == 31.0
	})).Return(nil)
	mockMQTT.On("Publish", "telemetry", byte(1), false, mock.Anything).Return(&stubToken{})

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  0.0,
		Longitude: 21.0,
		Altitude:  31.0,
		Timestamp: time.Now(),
	})

	assert.NoError(t, err)
	mockCache.AssertExpectations(t)
	mockMQTT.AssertExpectations(t)
}

// TestTelemetryService_PartialTelemetryCachedNotPublished verifies that a
// snapshot still missing an axis after repair is cached but never emitted.
func TestTelemetryService_PartialTelemetryCachedNotPublished(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(models.TelemetrySnapshot{}, false, nil)
	mockCache.On("Set", mock.Anything, "drone-1", mock.Anything).Return(nil)

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  0.0,
		Longitude: 21.0,
		Timestamp: time.Now(),
	})

	assert.NoError(t, err)
	mockCache.AssertExpectations(t)
	mockMQTT.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestTelemetryService_SkipsDuplicateLocation verifies that a position equal
// to the cached one produces no emission and no cache write.
func TestTelemetryService_SkipsDuplicateLocation(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(cachedSnapshot("drone-1", 10.5, 20.25, 30.0), true, nil)

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  10.5,
		Longitude: 20.25,
		Altitude:  35.0,
		Timestamp: time.Now(),
	})

	assert.NoError(t, err)
	mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	mockMQTT.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestTelemetryService_PublishesFreshLocation covers the plain path: a fully
// located snapshot with no cached twin is cached and published.
func TestTelemetryService_PublishesFreshLocation(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(models.TelemetrySnapshot{}, false, nil)
	mockCache.On("Set", mock.Anything, "drone-1", mock.Anything).Return(nil)
	mockMQTT.On("Publish", "telemetry", byte(1), false, mock.Anything).Return(&stubToken{})

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  1.23456,
		Longitude: 2.34567,
		Altitude:  50.0,
		Timestamp: time.Now(),
	})

	assert.NoError(t, err)
	mockCache.AssertExpectations(t)
	mockMQTT.AssertExpectations(t)
}

// TestTelemetryService_PublishFailureDoesNotError verifies that a failed bus
// emission is swallowed: the cache already holds the snapshot.
func TestTelemetryService_PublishFailureDoesNotError(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(models.TelemetrySnapshot{}, false, nil)
	mockCache.On("Set", mock.Anything, "drone-1", mock.Anything).Return(nil)
	mockMQTT.On("Publish", "telemetry", byte(1), false, mock.Anything).
		Return(&stubToken{err: errors.New("broker unavailable")})

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  1.0,
		Longitude: 2.0,
		Timestamp: time.Now(),
	})

	assert.NoError(t, err)
}

// TestTelemetryService_CacheLookupErrorSurfaces verifies that an unreachable
// cache is reported to the caller.
func TestTelemetryService_CacheLookupErrorSurfaces(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(models.TelemetrySnapshot{}, false, errors.New("connection refused"))

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  1.0,
		Longitude: 2.0,
		Timestamp: time.Now(),
	})

	assert.Error(t, err)
}

// TestTelemetryService_RepairIsIdempotent verifies that reprocessing the same
// raw report after a repair changes nothing: the repaired position matches
// the cache, so the second pass is a duplicate.
func TestTelemetryService_RepairIsIdempotent(t *testing.T) {
	mockCache := new(MockTelemetryCache)
	mockMQTT := new(MockMQTTClient)
	ts := NewTelemetryService(mockCache, newTestPublisher(mockMQTT), zerolog.Nop())

	mockCache.On("Get", mock.Anything, "drone-1").
		Return(cachedSnapshot("drone-1", 10.5, 21.0, 31.0), true, nil)

	err := ts.Process(context.Background(), gcs.RawTelemetry{
		VehicleID: "drone-1",
		Latitude:  0.0,
		Longitude: 21.0,
		Altitude:  31.0,
		Timestamp: time.Now(),
	})

	assert.NoError(t, err)
	mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	mockMQTT.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
