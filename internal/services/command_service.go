package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/OsiaDev/core/internal/constants"
	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/OsiaDev/core/pkg/mqtt"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// CommandService consumes command requests from the bus, executes them
// against the GCS and publishes exactly one terminal result per attempt.
type CommandService struct {
	// Configuration fields
	subTopic string
	qos      int
	timeout  time.Duration

	// Dependencies
	mqttClient mqtt.MQTTClient
	connection *ConnectionService
	gcsClient  gcs.Client
	validator  *CommandValidator
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

// NewCommandService initializes a new CommandService with given parameters.
func NewCommandService(subTopic string, qos int, timeout time.Duration, mqttClient mqtt.MQTTClient,
	connection *ConnectionService, gcsClient gcs.Client, validator *CommandValidator,
	publisher *messaging.Publisher, logger zerolog.Logger) *CommandService {
	if timeout <= 0 {
		timeout = constants.DefaultCommandTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CommandService{
		subTopic:   subTopic,
		qos:        qos,
		timeout:    timeout,
		mqttClient: mqttClient,
		connection: connection,
		gcsClient:  gcsClient,
		validator:  validator,
		publisher:  publisher,
		logger:     logger,
		stopChan:   make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the command topic and begins handling requests.
func (cs *CommandService) Start() error {
	cs.logger.Info().Str("topic", cs.subTopic).Msg("Starting CommandService and subscribing to MQTT topic")
	token := cs.mqttClient.Subscribe(cs.subTopic, byte(cs.qos), cs.HandleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		cs.logger.Error().Err(err).Str("topic", cs.subTopic).Msg("Failed to subscribe to MQTT topic")
		return err
	}

	cs.logger.Info().Str("topic", cs.subTopic).Msg("Successfully subscribed to MQTT topic")
	return nil
}

// Stop unsubscribes and waits for in-flight commands to finish.
func (cs *CommandService) Stop() error {
	cs.cancel()
	cs.mu.Lock()
	close(cs.stopChan)
	cs.mu.Unlock()
	cs.wg.Wait()

	token := cs.mqttClient.Unsubscribe(cs.subTopic)
	token.Wait()
	if err := token.Error(); err != nil {
		cs.logger.Error().Err(err).Str("topic", cs.subTopic).Msg("Failed to unsubscribe from MQTT topic")
		return err
	}

	cs.logger.Info().Msg("CommandService stopped successfully")
	return nil
}

// HandleMessage processes one inbound command message. A message that fails
// to parse is logged and dropped; it must never stall the topic.
func (cs *CommandService) HandleMessage(client MQTT.Client, msg MQTT.Message) {
	cs.mu.Lock()
	select {
	case <-cs.stopChan:
		cs.mu.Unlock()
		cs.logger.Warn().Msg("Received command but service is stopping, ignoring command")
		return
	default:
		cs.wg.Add(1)
		cs.mu.Unlock()
	}

	go func() {
		defer cs.wg.Done()

		var command models.CommandExecution
		if err := json.Unmarshal(msg.Payload(), &command); err != nil {
			cs.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse command message")
			return
		}

		cs.logger.Info().
			Str("vehicle_id", command.VehicleID).
			Str("command", command.CommandCode).
			Msg("Received command from MQTT topic")

		result := cs.ensureConnectionAndExecute(cs.ctx, command)
		cs.publishResult(result)
	}()
}

// ensureConnectionAndExecute applies the caller-level reconnect-then-retry
// policy: a disconnected gateway attempts one reconnect before executing.
// The reconnect wait is bounded by the command timeout so a request arriving
// while the endpoint is down still gets its terminal result promptly instead
// of blocking in the backoff loop until the endpoint returns.
func (cs *CommandService) ensureConnectionAndExecute(ctx context.Context, command models.CommandExecution) models.CommandResult {
	if !cs.connection.IsConnected() {
		cs.logger.Warn().Msg("UCS disconnected, attempting reconnection before command execution")
		connectCtx, cancel := context.WithTimeout(ctx, cs.timeout)
		err := cs.connection.Connect(connectCtx)
		cancel()
		if err != nil {
			return models.NewCommandResult(command.VehicleID, command.CommandCode,
				models.CommandStatusRejected, "Not connected to UCS server")
		}
	}
	return cs.Execute(ctx, command)
}

// Execute runs one command end-to-end: validation, connection gate, GCS
// call and result classification. The timeout bounds everything up to the
// classification; publishing is outside it. On expiry the GCS call is only
// abandoned client-side, the server may still apply it.
func (cs *CommandService) Execute(ctx context.Context, command models.CommandExecution) models.CommandResult {
	ctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()

	if err := cs.validator.Validate(command); err != nil {
		cs.logger.Warn().Err(err).
			Str("vehicle_id", command.VehicleID).
			Str("command", command.CommandCode).
			Msg("Command rejected by validation")
		return models.NewCommandResult(command.VehicleID, command.CommandCode,
			models.CommandStatusRejected, err.Error())
	}

	if !cs.connection.IsConnected() {
		return models.NewCommandResult(command.VehicleID, command.CommandCode,
			models.CommandStatusRejected, "Not connected to UCS server")
	}

	success, err := cs.gcsClient.ExecuteCommand(ctx, command.VehicleID, command.CommandCode, command.Arguments)
	if err != nil {
		cs.logger.Error().Err(err).
			Str("vehicle_id", command.VehicleID).
			Str("command", command.CommandCode).
			Msg("Command execution failed")
		return models.NewCommandResult(command.VehicleID, command.CommandCode,
			StatusForError(err), err.Error())
	}
	if !success {
		return models.NewCommandResult(command.VehicleID, command.CommandCode,
			models.CommandStatusFailed, "Command execution returned false")
	}

	cs.logger.Info().
		Str("vehicle_id", command.VehicleID).
		Str("command", command.CommandCode).
		Msg("Command executed successfully")
	return models.NewCommandSuccess(command.VehicleID, command.CommandCode)
}

// publishResult reports the terminal result. Reporting failures are logged,
// never surfaced: the result is already decided.
func (cs *CommandService) publishResult(result models.CommandResult) {
	if err := cs.publisher.PublishCommandResult(result); err != nil {
		cs.logger.Error().Err(err).
			Str("vehicle_id", result.VehicleID).
			Str("command", result.CommandCode).
			Msg("Failed to publish command result")
	}
}

// StatusForError is the total mapping from the GCS error taxonomy to a
// command status.
func StatusForError(err error) models.CommandStatus {
	if err == nil {
		return models.CommandStatusSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.CommandStatusTimeout
	}
	switch gcs.KindOf(err) {
	case gcs.KindTimeout:
		return models.CommandStatusTimeout
	case gcs.KindValidation, gcs.KindNotConnected:
		return models.CommandStatusRejected
	default:
		return models.CommandStatusFailed
	}
}
