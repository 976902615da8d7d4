package services

import (
	"context"
	"time"

	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/mock"
)

// MockGCSClient is a mock implementation of the gcs.Client interface.
type MockGCSClient struct {
	mock.Mock
}

func (m *MockGCSClient) Connect(ctx context.Context, host string, port int, username, password string) error {
	args := m.Called(ctx, host, port, username, password)
	return args.Error(0)
}

func (m *MockGCSClient) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockGCSClient) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockGCSClient) Telemetry() <-chan gcs.RawTelemetry {
	args := m.Called()
	return args.Get(0).(<-chan gcs.RawTelemetry)
}

func (m *MockGCSClient) MissionEvents() <-chan gcs.RawMissionEvent {
	args := m.Called()
	return args.Get(0).(<-chan gcs.RawMissionEvent)
}

func (m *MockGCSClient) ExecuteCommand(ctx context.Context, vehicleID, commandCode string, cmdArgs map[string]float64) (bool, error) {
	args := m.Called(ctx, vehicleID, commandCode, cmdArgs)
	return args.Bool(0), args.Error(1)
}

func (m *MockGCSClient) FindOrCreateMission(ctx context.Context, name string) (gcs.Mission, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(gcs.Mission), args.Error(1)
}

func (m *MockGCSClient) FindRouteByName(ctx context.Context, name string) (gcs.Route, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(gcs.Route), args.Bool(1), args.Error(2)
}

func (m *MockGCSClient) CreateAndUploadRoute(ctx context.Context, mission gcs.Mission, vehicleID string, spec gcs.RouteSpec) (gcs.Vehicle, error) {
	args := m.Called(ctx, mission, vehicleID, spec)
	return args.Get(0).(gcs.Vehicle), args.Error(1)
}

func (m *MockGCSClient) UploadExistingRoute(ctx context.Context, vehicleID string, route gcs.Route) (gcs.Vehicle, error) {
	args := m.Called(ctx, vehicleID, route)
	return args.Get(0).(gcs.Vehicle), args.Error(1)
}

func (m *MockGCSClient) CreateMissionVehicle(ctx context.Context, mission gcs.Mission, vehicle gcs.Vehicle) (bool, error) {
	args := m.Called(ctx, mission, vehicle)
	return args.Bool(0), args.Error(1)
}

// MockTelemetryCache is a mock implementation of the cache.TelemetryCache interface.
type MockTelemetryCache struct {
	mock.Mock
}

func (m *MockTelemetryCache) Get(ctx context.Context, vehicleID string) (models.TelemetrySnapshot, bool, error) {
	args := m.Called(ctx, vehicleID)
	return args.Get(0).(models.TelemetrySnapshot), args.Bool(1), args.Error(2)
}

func (m *MockTelemetryCache) Set(ctx context.Context, vehicleID string, snapshot models.TelemetrySnapshot) error {
	args := m.Called(ctx, vehicleID, snapshot)
	return args.Error(0)
}

// MockMQTTClient is a mock implementation of the MQTTClient interface.
type MockMQTTClient struct {
	mock.Mock
}

func (m *MockMQTTClient) Connect() mqtt.Token {
	args := m.Called()
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	args := m.Called(topic, qos, callback)
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) mqtt.Token {
	args := m.Called(topics)
	return args.Get(0).(mqtt.Token)
}

func (m *MockMQTTClient) Disconnect(quiesce uint) {
	m.Called(quiesce)
}

// stubToken is a completed mqtt.Token carrying a fixed error.
type stubToken struct {
	err error
}

func (t *stubToken) Wait() bool                     { return true }
func (t *stubToken) WaitTimeout(time.Duration) bool { return true }
func (t *stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *stubToken) Error() error { return t.err }
