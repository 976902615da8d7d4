package services

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// HealthService periodically publishes gateway process health on the
// vehicle-status topic: connection state plus host CPU, memory and
// goroutine counts.
type HealthService struct {
	// Configuration fields
	interval time.Duration

	// Dependencies
	connection *ConnectionService
	publisher  *messaging.Publisher
	logger     zerolog.Logger

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewHealthService creates a HealthService reporting at the given interval.
func NewHealthService(interval time.Duration, connection *ConnectionService, publisher *messaging.Publisher,
	logger zerolog.Logger) *HealthService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthService{
		interval:   interval,
		connection: connection,
		publisher:  publisher,
		logger:     logger,
	}
}

// Start begins the periodic health reports.
func (hs *HealthService) Start() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.running {
		hs.logger.Warn().Msg("HealthService is already running")
		return errors.New("health service is already running")
	}

	hs.ctx, hs.cancel = context.WithCancel(context.Background())
	hs.running = true

	hs.wg.Add(1)
	go hs.run()

	hs.logger.Info().Dur("interval", hs.interval).Msg("HealthService started")
	return nil
}

// Stop halts the reports.
func (hs *HealthService) Stop() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if !hs.running {
		hs.logger.Warn().Msg("HealthService is not running")
		return errors.New("health service is not running")
	}

	hs.cancel()
	hs.wg.Wait()
	hs.running = false
	hs.logger.Info().Msg("HealthService stopped")
	return nil
}

func (hs *HealthService) run() {
	defer hs.wg.Done()

	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return
		case <-ticker.C:
			hs.report()
		}
	}
}

func (hs *HealthService) report() {
	details := map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		details["cpuPercent"] = percentages[0]
	} else if err != nil {
		hs.logger.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		details["memoryPercent"] = vm.UsedPercent
	} else {
		hs.logger.Warn().Err(err).Msg("Failed to read memory usage")
	}

	status := models.VehicleStatus{
		VehicleID: "gateway",
		Status:    hs.connection.State().String(),
		Details:   details,
		Timestamp: time.Now(),
	}

	if err := hs.publisher.PublishVehicleStatus(status); err != nil {
		hs.logger.Error().Err(err).Msg("Failed to publish health status")
	}
}
