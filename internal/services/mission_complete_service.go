package services

import (
	"context"
	"strings"

	"github.com/OsiaDev/core/internal/constants"
	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
)

// missionCompleteMarker identifies completion entries in the vehicle log
// stream. The GCS reports "Current mission complete. Flight time: 93.46".
const missionCompleteMarker = "mission complete"

// MissionCompleteService watches the vehicle log stream for mission
// completion, commands the vehicle to land and publishes the completion
// event to the bus.
type MissionCompleteService struct {
	// Dependencies
	gcsClient gcs.Client
	publisher *messaging.Publisher
	logger    zerolog.Logger
}

// NewMissionCompleteService creates a MissionCompleteService.
func NewMissionCompleteService(gcsClient gcs.Client, publisher *messaging.Publisher, logger zerolog.Logger) *MissionCompleteService {
	return &MissionCompleteService{
		gcsClient: gcsClient,
		publisher: publisher,
		logger:    logger,
	}
}

// Process handles one vehicle log entry. Non-completion entries are ignored.
// The land command is best-effort: a landing failure is logged but the
// completion event is still published so operator tooling sees the mission
// end.
func (ms *MissionCompleteService) Process(ctx context.Context, event gcs.RawMissionEvent) error {
	if !strings.Contains(strings.ToLower(event.Message), missionCompleteMarker) {
		return nil
	}

	ms.logger.Info().
		Str("vehicle_id", event.VehicleID).
		Str("message", event.Message).
		Msg("Mission complete detected, sending land command")

	success, err := ms.gcsClient.ExecuteCommand(ctx, event.VehicleID, constants.CommandLand, nil)
	if err != nil {
		ms.logger.Error().Err(err).Str("vehicle_id", event.VehicleID).Msg("Failed to send land command after mission completion")
	} else if !success {
		ms.logger.Warn().Str("vehicle_id", event.VehicleID).Msg("Land command after mission completion returned false")
	}

	complete := models.NewMissionComplete(event.VehicleID, event.Message, event.Timestamp)
	if err := ms.publisher.PublishMissionComplete(complete); err != nil {
		ms.logger.Error().Err(err).Str("vehicle_id", event.VehicleID).Msg("Failed to publish mission complete event")
		return err
	}

	ms.logger.Info().
		Str("vehicle_id", event.VehicleID).
		Float64("flight_time_seconds", complete.FlightTimeSeconds).
		Msg("Mission complete event published")
	return nil
}
