package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OsiaDev/core/internal/messaging"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/internal/utils"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
)

// ConnectionState is the lifecycle state of the UCS session, owned
// exclusively by the ConnectionService.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// connectionProbeInterval is how often the notification pump re-checks the
// session while waiting out a failed reconnect.
const connectionProbeInterval = 250 * time.Millisecond

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "DISCONNECTED"
	}
}

// ConnectionSettings configures the UCS endpoint and the reconnect policy.
type ConnectionSettings struct {
	Host         string
	Port         int
	Username     string
	Password     string
	RetryEnabled bool
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ConnectionService owns the UCS session lifecycle: it connects with
// backoff, keeps the telemetry and mission-complete subscriptions pumping,
// and reconnects when the session drops. Transport failures never surface
// to command or mission callers beyond IsConnected reporting false.
type ConnectionService struct {
	// Configuration fields
	settings ConnectionSettings

	// Dependencies
	gcsClient       gcs.Client
	telemetry       *TelemetryService
	missionComplete *MissionCompleteService
	publisher       *messaging.Publisher
	pool            *utils.WorkerPool
	logger          zerolog.Logger

	// Internal state management
	state   atomic.Int32
	connMu  sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewConnectionService creates a ConnectionService with the given settings.
func NewConnectionService(settings ConnectionSettings, gcsClient gcs.Client, telemetry *TelemetryService,
	missionComplete *MissionCompleteService, publisher *messaging.Publisher, pool *utils.WorkerPool,
	logger zerolog.Logger) *ConnectionService {
	if settings.InitialDelay <= 0 {
		settings.InitialDelay = 5 * time.Second
	}
	if settings.MaxDelay <= 0 {
		settings.MaxDelay = time.Minute
	}

	return &ConnectionService{
		settings:        settings,
		gcsClient:       gcsClient,
		telemetry:       telemetry,
		missionComplete: missionComplete,
		publisher:       publisher,
		pool:            pool,
		logger:          logger,
	}
}

// Start establishes the UCS session and begins pumping notifications.
func (cs *ConnectionService) Start() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.running {
		cs.logger.Warn().Msg("ConnectionService is already running")
		return errors.New("connection service is already running")
	}

	cs.ctx, cs.cancel = context.WithCancel(context.Background())
	cs.running = true

	if err := cs.Connect(cs.ctx); err != nil {
		cs.running = false
		cs.cancel()
		return err
	}

	cs.wg.Add(1)
	go cs.supervise()

	cs.logger.Info().
		Str("host", cs.settings.Host).
		Int("port", cs.settings.Port).
		Msg("ConnectionService started")
	return nil
}

// Stop disconnects and halts reconnection. Idempotent once stopped.
func (cs *ConnectionService) Stop() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.running {
		cs.logger.Warn().Msg("ConnectionService is not running")
		return errors.New("connection service is not running")
	}

	cs.cancel()
	_ = cs.gcsClient.Disconnect()
	cs.wg.Wait()

	cs.setState(StateDisconnected)
	cs.running = false
	cs.logger.Info().Msg("ConnectionService stopped")
	return nil
}

// IsConnected is a non-blocking snapshot of the session state, used as the
// gate before every command and mission dispatch.
func (cs *ConnectionService) IsConnected() bool {
	return cs.State() == StateConnected && cs.gcsClient.IsConnected()
}

// State returns the current lifecycle state.
func (cs *ConnectionService) State() ConnectionState {
	return ConnectionState(cs.state.Load())
}

// Connect establishes the session, retrying under the backoff policy when
// enabled. With retry disabled a single failed attempt is surfaced to the
// caller. Concurrent callers are serialized; a call that finds the session
// already up returns immediately.
func (cs *ConnectionService) Connect(ctx context.Context) error {
	cs.connMu.Lock()
	defer cs.connMu.Unlock()

	if cs.IsConnected() {
		return nil
	}

	if cs.State() != StateReconnecting {
		cs.setState(StateConnecting)
	}

	for attempt := 0; ; attempt++ {
		if cs.gcsClient.IsConnected() {
			cs.setState(StateConnected)
			return nil
		}

		err := cs.gcsClient.Connect(ctx, cs.settings.Host, cs.settings.Port, cs.settings.Username, cs.settings.Password)
		if err == nil {
			cs.setState(StateConnected)
			cs.notifyStatus(StateConnected)
			cs.logger.Info().Int("attempt", attempt+1).Msg("Connected to UCS server")
			return nil
		}

		cs.logger.Error().Err(err).Int("attempt", attempt+1).Msg("Failed to connect to UCS server")

		if !cs.settings.RetryEnabled {
			cs.setState(StateDisconnected)
			return err
		}

		delay := cs.backoffDelay(attempt)
		cs.logger.Warn().Dur("delay", delay).Msg("Retrying UCS connection")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			cs.setState(StateDisconnected)
			return ctx.Err()
		}
	}
}

// supervise pumps both notification streams and reconnects when they close.
// Each received item is handed to the worker pool; a failing item is logged
// and never terminates the subscription.
func (cs *ConnectionService) supervise() {
	defer cs.wg.Done()

	for {
		telemetryCh := cs.gcsClient.Telemetry()
		missionCh := cs.gcsClient.MissionEvents()

		for telemetryCh != nil || missionCh != nil {
			select {
			case <-cs.ctx.Done():
				return
			case raw, ok := <-telemetryCh:
				if !ok {
					telemetryCh = nil
					continue
				}
				cs.dispatchTelemetry(raw)
			case event, ok := <-missionCh:
				if !ok {
					missionCh = nil
					continue
				}
				cs.dispatchMissionEvent(event)
			}
		}

		if cs.ctx.Err() != nil {
			return
		}

		cs.logger.Warn().Msg("UCS notification streams closed, reconnecting")
		cs.setState(StateReconnecting)
		cs.notifyStatus(StateReconnecting)

		// The pump must outlive a failed reconnect: a later caller-driven
		// Connect produces fresh streams, and they need a consumer waiting.
		if err := cs.Connect(cs.ctx); err != nil {
			cs.setState(StateDisconnected)
			cs.notifyStatus(StateDisconnected)
			cs.logger.Error().Err(err).Msg("Reconnection failed, waiting for a caller-driven reconnect")
			if !cs.awaitReconnect() {
				return
			}
		}
	}
}

// awaitReconnect blocks until the session is back or the service stops. It
// never initiates connection attempts itself; those stay with Connect and
// its retry policy.
func (cs *ConnectionService) awaitReconnect() bool {
	ticker := time.NewTicker(connectionProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.ctx.Done():
			return false
		case <-ticker.C:
			if cs.IsConnected() {
				return true
			}
		}
	}
}

func (cs *ConnectionService) dispatchTelemetry(raw gcs.RawTelemetry) {
	cs.pool.Submit(func() {
		if err := cs.telemetry.Process(cs.ctx, raw); err != nil {
			cs.logger.Error().Err(err).Str("vehicle_id", raw.VehicleID).Msg("Failed to process telemetry")
		}
	})
}

func (cs *ConnectionService) dispatchMissionEvent(event gcs.RawMissionEvent) {
	cs.pool.Submit(func() {
		if err := cs.missionComplete.Process(cs.ctx, event); err != nil {
			cs.logger.Error().Err(err).Str("vehicle_id", event.VehicleID).Msg("Failed to process mission complete event")
		}
	})
}

// backoffDelay doubles the initial delay per attempt up to the ceiling, with
// jitter so a fleet of gateways does not reconnect in lockstep.
func (cs *ConnectionService) backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := cs.settings.InitialDelay * time.Duration(1<<uint(attempt))
	if delay > cs.settings.MaxDelay || delay <= 0 {
		delay = cs.settings.MaxDelay
	}
	jitter := time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	return time.Duration(float64(delay)*0.5) + jitter/2
}

func (cs *ConnectionService) setState(state ConnectionState) {
	cs.state.Store(int32(state))
}

func (cs *ConnectionService) notifyStatus(state ConnectionState) {
	status := models.VehicleStatus{
		VehicleID: "gateway",
		Status:    state.String(),
		Timestamp: time.Now(),
	}
	if err := cs.publisher.PublishVehicleStatus(status); err != nil {
		cs.logger.Error().Err(err).Msg("Failed to publish connection status")
	}
}
