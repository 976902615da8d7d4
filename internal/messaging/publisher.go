package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Topics names the outbound bus channels. Each message is keyed by vehicle
// ID in its payload; brokers that partition per key get ordering per vehicle.
type Topics struct {
	Telemetry       string
	CommandResults  string
	VehicleStatus   string
	MissionComplete string
}

// Publisher serializes gateway events to JSON and publishes them on the bus.
type Publisher struct {
	mqttClient mqtt.MQTTClient
	topics     Topics
	qos        int
	logger     zerolog.Logger
}

// NewPublisher creates a Publisher for the given topic set.
func NewPublisher(mqttClient mqtt.MQTTClient, topics Topics, qos int, logger zerolog.Logger) *Publisher {
	return &Publisher{
		mqttClient: mqttClient,
		topics:     topics,
		qos:        qos,
		logger:     logger,
	}
}

// PublishTelemetry emits a reconciled telemetry snapshot.
func (p *Publisher) PublishTelemetry(snapshot models.TelemetrySnapshot) error {
	return p.publish(p.topics.Telemetry, snapshot)
}

// PublishCommandResult emits the terminal result of a command or mission.
func (p *Publisher) PublishCommandResult(result models.CommandResult) error {
	return p.publish(p.topics.CommandResults, result)
}

// PublishVehicleStatus emits a connection or health status event.
func (p *Publisher) PublishVehicleStatus(status models.VehicleStatus) error {
	return p.publish(p.topics.VehicleStatus, status)
}

// PublishMissionComplete emits a mission-completion event.
func (p *Publisher) PublishMissionComplete(event models.MissionComplete) error {
	return p.publish(p.topics.MissionComplete, event)
}

func (p *Publisher) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize message for %s: %w", topic, err)
	}

	token := p.mqttClient.Publish(topic, byte(p.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Msg("Message published")
	return nil
}
