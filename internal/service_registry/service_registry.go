package service_registry

import (
	"errors"
	"fmt"

	"github.com/OsiaDev/core/internal/cache"
	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/services"
	"github.com/OsiaDev/core/internal/utils"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/OsiaDev/core/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Service is the lifecycle interface every registered gateway service
// implements.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	publisher   *messaging.Publisher
	logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, publisher *messaging.Publisher, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices wires and registers the gateway services in dependency
// order: the UCS connection comes up first so the bus-driven services start
// against a live session, and stops last so they drain cleanly.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, gcsClient gcs.Client,
	telemetryCache cache.TelemetryCache, pool *utils.WorkerPool) error {
	telemetry := services.NewTelemetryService(telemetryCache, sr.publisher, sr.logger)
	missionComplete := services.NewMissionCompleteService(gcsClient, sr.publisher, sr.logger)

	connection := services.NewConnectionService(
		services.ConnectionSettings{
			Host:         config.UCS.Host,
			Port:         config.UCS.Port,
			Username:     config.UCS.Username,
			Password:     config.UCS.Password,
			RetryEnabled: config.UCS.Reconnect.Enabled,
			InitialDelay: config.UCS.Reconnect.InitialDelay,
			MaxDelay:     config.UCS.Reconnect.MaxDelay,
		},
		gcsClient,
		telemetry,
		missionComplete,
		sr.publisher,
		pool,
		sr.logger,
	)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "connection",
			enabled: true,
			constructor: func() (Service, error) {
				return connection, nil
			},
		},
		{
			name:    "command",
			enabled: true,
			constructor: func() (Service, error) {
				return services.NewCommandService(
					config.Topics.Commands,
					config.MQTT.QOS,
					config.Mission.CommandTimeout,
					sr.mqttClient,
					connection,
					gcsClient,
					services.NewCommandValidator(sr.logger),
					sr.publisher,
					sr.logger,
				), nil
			},
		},
		{
			name:    "mission",
			enabled: true,
			constructor: func() (Service, error) {
				return services.NewMissionService(
					config.Topics.Missions,
					config.MQTT.QOS,
					services.MissionSettings{
						DefaultSpeed:     config.Mission.DefaultSpeed,
						DefaultAltitude:  config.Mission.DefaultAltitude,
						AcceptanceRadius: config.Mission.AcceptanceRadius,
						ExecutionTimeout: config.Mission.ExecutionTimeout,
					},
					sr.mqttClient,
					connection,
					gcsClient,
					sr.publisher,
					sr.logger,
				), nil
			},
		},
		{
			name:    "health",
			enabled: config.Health.Enabled,
			constructor: func() (Service, error) {
				return services.NewHealthService(
					config.Health.Interval,
					connection,
					sr.publisher,
					sr.logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
