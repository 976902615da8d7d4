package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/OsiaDev/core/internal/constants"
	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/OsiaDev/core/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// missionResultVehicleID is the synthetic vehicle id on aggregate mission
// results, since the result spans the whole fleet slice.
const missionResultVehicleID = "mission"

// MissionSettings are the route defaults and timeouts applied when a mission
// request leaves them unset.
type MissionSettings struct {
	DefaultSpeed     float64
	DefaultAltitude  float64
	AcceptanceRadius float64
	ExecutionTimeout time.Duration
}

// MissionService consumes multi-vehicle mission requests from the bus and
// orchestrates them: one route per drone, prepared and started in parallel,
// with a single aggregate result published at the end. A mission succeeds
// only when every drone succeeds.
type MissionService struct {
	// Configuration fields
	subTopic string
	qos      int
	settings MissionSettings

	// Dependencies
	mqttClient mqtt.MQTTClient
	connection *ConnectionService
	gcsClient  gcs.Client
	publisher  *messaging.Publisher
	logger     zerolog.Logger

	// Internal state management
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMissionService initializes a new MissionService with given parameters.
func NewMissionService(subTopic string, qos int, settings MissionSettings, mqttClient mqtt.MQTTClient,
	connection *ConnectionService, gcsClient gcs.Client, publisher *messaging.Publisher,
	logger zerolog.Logger) *MissionService {
	if settings.DefaultSpeed <= 0 {
		settings.DefaultSpeed = constants.DefaultRouteSpeed
	}
	if settings.DefaultAltitude <= 0 {
		settings.DefaultAltitude = constants.DefaultRouteAltitude
	}
	if settings.AcceptanceRadius <= 0 {
		settings.AcceptanceRadius = constants.DefaultAcceptanceRadius
	}
	if settings.ExecutionTimeout <= 0 {
		settings.ExecutionTimeout = constants.DefaultMissionTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MissionService{
		subTopic:   subTopic,
		qos:        qos,
		settings:   settings,
		mqttClient: mqttClient,
		connection: connection,
		gcsClient:  gcsClient,
		publisher:  publisher,
		logger:     logger,
		stopChan:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the mission topic and begins handling requests.
func (ms *MissionService) Start() error {
	ms.logger.Info().Str("topic", ms.subTopic).Msg("Starting MissionService and subscribing to MQTT topic")
	token := ms.mqttClient.Subscribe(ms.subTopic, byte(ms.qos), ms.HandleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		ms.logger.Error().Err(err).Str("topic", ms.subTopic).Msg("Failed to subscribe to MQTT topic")
		return err
	}

	ms.logger.Info().Str("topic", ms.subTopic).Msg("Successfully subscribed to MQTT topic")
	return nil
}

// Stop unsubscribes and waits for in-flight missions to finish.
func (ms *MissionService) Stop() error {
	ms.cancel()
	ms.mu.Lock()
	close(ms.stopChan)
	ms.mu.Unlock()
	ms.wg.Wait()

	token := ms.mqttClient.Unsubscribe(ms.subTopic)
	token.Wait()
	if err := token.Error(); err != nil {
		ms.logger.Error().Err(err).Str("topic", ms.subTopic).Msg("Failed to unsubscribe from MQTT topic")
		return err
	}

	ms.logger.Info().Msg("MissionService stopped successfully")
	return nil
}

// HandleMessage processes one inbound mission request.
func (ms *MissionService) HandleMessage(client MQTT.Client, msg MQTT.Message) {
	ms.mu.Lock()
	select {
	case <-ms.stopChan:
		ms.mu.Unlock()
		ms.logger.Warn().Msg("Received mission but service is stopping, ignoring mission")
		return
	default:
		ms.wg.Add(1)
		ms.mu.Unlock()
	}

	go func() {
		defer ms.wg.Done()

		var mission models.MissionExecution
		if err := json.Unmarshal(msg.Payload(), &mission); err != nil {
			ms.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse mission message")
			return
		}

		ms.logger.Info().
			Str("mission_id", mission.MissionID).
			Int("drones", len(mission.Drones)).
			Msg("Received mission from MQTT topic")

		result := ms.ensureConnectionAndExecute(ms.ctx, mission)
		ms.publishResult(result)
	}()
}

func (ms *MissionService) ensureConnectionAndExecute(ctx context.Context, mission models.MissionExecution) models.CommandResult {
	if err := mission.Validate(); err != nil {
		return models.NewCommandResult(missionResultVehicleID, mission.MissionCommandCode(),
			models.CommandStatusRejected, err.Error())
	}

	if !ms.connection.IsConnected() {
		ms.logger.Warn().Msg("UCS disconnected, attempting reconnection before mission execution")
		// Bounded like the per-command reconnect: the mission deadline caps
		// the backoff wait so the aggregate result cannot be deferred past it.
		connectCtx, cancel := context.WithTimeout(ctx, ms.settings.ExecutionTimeout)
		err := ms.connection.Connect(connectCtx)
		cancel()
		if err != nil {
			return models.NewCommandResult(missionResultVehicleID, mission.MissionCommandCode(),
				models.CommandStatusRejected, "Not connected to UCS server")
		}
	}

	return ms.Execute(ctx, mission)
}

// Execute orchestrates one mission end-to-end under the mission timeout:
// resolve the mission record, then prepare and start every drone in
// parallel. A drone failure does not cancel its siblings; drones already
// flying keep their routes. The aggregate result is SUCCESS only when all
// drones succeeded, otherwise the first failure decides the status.
func (ms *MissionService) Execute(ctx context.Context, mission models.MissionExecution) models.CommandResult {
	ctx, cancel := context.WithTimeout(ctx, ms.settings.ExecutionTimeout)
	defer cancel()

	record, err := ms.gcsClient.FindOrCreateMission(ctx, mission.MissionID)
	if err != nil {
		ms.logger.Error().Err(err).Str("mission_id", mission.MissionID).Msg("Failed to resolve mission record")
		return models.NewCommandResult(missionResultVehicleID, mission.MissionCommandCode(),
			StatusForError(err), err.Error())
	}

	// Plain errgroup on purpose: sibling drones must run to completion even
	// when one fails, so no shared cancellation context.
	var group errgroup.Group
	for _, drone := range mission.Drones {
		drone := drone
		group.Go(func() error {
			if err := ms.executeDrone(ctx, record, mission.MissionID, drone); err != nil {
				return fmt.Errorf("vehicle %s: %w", drone.VehicleID, err)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		ms.logger.Error().Err(err).Str("mission_id", mission.MissionID).Msg("Mission execution failed")
		return models.NewCommandResult(missionResultVehicleID, mission.MissionCommandCode(),
			StatusForError(err), err.Error())
	}

	ms.logger.Info().
		Str("mission_id", mission.MissionID).
		Int("drones", len(mission.Drones)).
		Msg("Mission executed successfully")
	return models.NewCommandResult(missionResultVehicleID, mission.MissionCommandCode(),
		models.CommandStatusSuccess,
		fmt.Sprintf("Mission executed successfully for %d drones", len(mission.Drones)))
}

// executeDrone runs the per-vehicle sequence: resolve or upload the route,
// register the vehicle under the mission, switch to AUTO and start the route.
// A drone without waypoints has no route work and succeeds trivially.
func (ms *MissionService) executeDrone(ctx context.Context, record gcs.Mission, missionID string, drone models.DroneExecution) error {
	if !drone.HasWaypoints() {
		ms.logger.Info().
			Str("mission_id", missionID).
			Str("vehicle_id", drone.VehicleID).
			Msg("Drone has no waypoints, skipping route execution")
		return nil
	}

	vehicle, err := ms.prepareRoute(ctx, record, missionID, drone)
	if err != nil {
		return err
	}

	if added, err := ms.gcsClient.CreateMissionVehicle(ctx, record, vehicle); err != nil {
		return fmt.Errorf("register vehicle under mission: %w", err)
	} else if added {
		ms.logger.Debug().
			Str("mission_id", missionID).
			Str("vehicle_id", drone.VehicleID).
			Msg("Vehicle registered under mission")
	}

	if err := ms.sendDroneCommand(ctx, drone.VehicleID, constants.CommandAuto); err != nil {
		return err
	}

	// The autopilot needs a moment in AUTO before it accepts a route start.
	select {
	case <-time.After(constants.RouteStartSettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return ms.sendDroneCommand(ctx, drone.VehicleID, constants.CommandStartRoute)
}

// prepareRoute reuses an existing route by name or creates and uploads a new
// one from the drone's waypoints.
func (ms *MissionService) prepareRoute(ctx context.Context, record gcs.Mission, missionID string, drone models.DroneExecution) (gcs.Vehicle, error) {
	routeName := drone.RouteName(missionID)

	route, found, err := ms.gcsClient.FindRouteByName(ctx, routeName)
	if err != nil {
		return gcs.Vehicle{}, fmt.Errorf("find route %s: %w", routeName, err)
	}
	if found {
		ms.logger.Info().
			Str("route", routeName).
			Str("vehicle_id", drone.VehicleID).
			Msg("Reusing existing route")
		vehicle, err := ms.gcsClient.UploadExistingRoute(ctx, drone.VehicleID, route)
		if err != nil {
			return gcs.Vehicle{}, fmt.Errorf("upload route %s: %w", routeName, err)
		}
		return vehicle, nil
	}

	spec := ms.buildRouteSpec(routeName, drone)
	ms.logger.Info().
		Str("route", routeName).
		Str("vehicle_id", drone.VehicleID).
		Int("waypoints", len(spec.Waypoints)).
		Msg("Creating and uploading new route")

	vehicle, err := ms.gcsClient.CreateAndUploadRoute(ctx, record, drone.VehicleID, spec)
	if err != nil {
		return gcs.Vehicle{}, fmt.Errorf("create route %s: %w", routeName, err)
	}
	return vehicle, nil
}

func (ms *MissionService) buildRouteSpec(routeName string, drone models.DroneExecution) gcs.RouteSpec {
	points := make([]gcs.RoutePoint, 0, len(drone.Waypoints))
	for _, w := range drone.Waypoints {
		points = append(points, gcs.RoutePoint{Latitude: w.Latitude, Longitude: w.Longitude})
	}

	altitude := ms.settings.DefaultAltitude
	if drone.SafeAltitude > 0 {
		altitude = drone.SafeAltitude
	}
	maxAltitude := constants.DefaultRouteMaxAltitude
	if drone.MaxAltitude > 0 {
		maxAltitude = drone.MaxAltitude
	}

	return gcs.RouteSpec{
		Name:             routeName,
		Waypoints:        points,
		Speed:            ms.settings.DefaultSpeed,
		Altitude:         altitude,
		AcceptanceRadius: ms.settings.AcceptanceRadius,
		MaxSpeed:         constants.DefaultRouteMaxSpeed,
		MaxAltitude:      maxAltitude,
	}
}

func (ms *MissionService) sendDroneCommand(ctx context.Context, vehicleID, commandCode string) error {
	success, err := ms.gcsClient.ExecuteCommand(ctx, vehicleID, commandCode, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", commandCode, err)
	}
	if !success {
		return fmt.Errorf("%s: command execution returned false", commandCode)
	}
	return nil
}

// publishResult reports the aggregate mission result on the command-result
// topic so operator tooling consumes one result stream.
func (ms *MissionService) publishResult(result models.CommandResult) {
	if err := ms.publisher.PublishCommandResult(result); err != nil {
		ms.logger.Error().Err(err).
			Str("command", result.CommandCode).
			Msg("Failed to publish mission result")
	}
}
