package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OsiaDev/core/internal/cache"
	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/service_registry"
	"github.com/OsiaDev/core/internal/ucs"
	"github.com/OsiaDev/core/internal/utils"
	"github.com/OsiaDev/core/pkg/file"
	"github.com/OsiaDev/core/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	err = mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID,
		config.MQTT.Username, config.MQTT.Password, config.MQTT.CACertificate)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	// Pick the telemetry cache backend
	var telemetryCache cache.TelemetryCache
	switch config.Cache.Backend {
	case "redis":
		redisCache := cache.NewRedisCache(config.Cache.Redis.Address, config.Cache.Redis.Password,
			config.Cache.Redis.DB, config.Cache.Redis.KeyPrefix, config.Cache.Redis.TTL, logger)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		cancel()
		defer redisCache.Close()
		telemetryCache = redisCache
	default:
		telemetryCache = cache.NewMemoryCache()
	}

	// Shared UCS session client and the notification worker pool
	gcsClient := ucs.NewClient(logger)
	pool := utils.NewWorkerPool(config.Workers, config.Workers*4)
	defer pool.Shutdown()

	publisher := messaging.NewPublisher(mqttClient, messaging.Topics{
		Telemetry:       config.Topics.Telemetry,
		CommandResults:  config.Topics.CommandResults,
		VehicleStatus:   config.Topics.VehicleStatus,
		MissionComplete: config.Topics.MissionComplete,
	}, config.MQTT.QOS, logger)

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, publisher, logger)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, gcsClient, telemetryCache, pool); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Errors while stopping services")
	}
	mqttClient.Disconnect(250)
}
