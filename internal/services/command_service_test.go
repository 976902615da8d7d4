package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/OsiaDev/core/internal/constants"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockMessage is a minimal mqtt.Message carrying a JSON payload.
type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 1 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func newTestConnection(mockGCS *MockGCSClient, state ConnectionState) *ConnectionService {
	conn := NewConnectionService(ConnectionSettings{Host: "localhost", Port: 3334},
		mockGCS, nil, nil, newTestPublisher(new(MockMQTTClient)), nil, zerolog.Nop())
	conn.setState(state)
	return conn
}

func newTestCommandService(mockMQTT *MockMQTTClient, mockGCS *MockGCSClient, state ConnectionState) *CommandService {
	return NewCommandService("commands", 1, time.Second, mockMQTT,
		newTestConnection(mockGCS, state), mockGCS,
		NewCommandValidator(zerolog.Nop()), newTestPublisher(mockMQTT), zerolog.Nop())
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.CommandStatus
	}{
		{"nil", nil, models.CommandStatusSuccess},
		{"deadline", context.DeadlineExceeded, models.CommandStatusTimeout},
		{"timeout kind", gcs.Errorf(gcs.KindTimeout, "call expired"), models.CommandStatusTimeout},
		{"validation", gcs.Errorf(gcs.KindValidation, "bad input"), models.CommandStatusRejected},
		{"not connected", gcs.Errorf(gcs.KindNotConnected, "no session"), models.CommandStatusRejected},
		{"vendor", gcs.Errorf(gcs.KindVendor, "server fault"), models.CommandStatusFailed},
		{"transport", gcs.Errorf(gcs.KindTransport, "connection reset"), models.CommandStatusFailed},
		{"plain error", errors.New("anything else"), models.CommandStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(tt.err))
		})
	}
}

func TestCommandService_Execute_Success(t *testing.T) {
	mockGCS := new(MockGCSClient)
	mockGCS.On("IsConnected").Return(true)
	mockGCS.On("ExecuteCommand", mock.Anything, "drone-1", constants.CommandArm, mock.Anything).
		Return(true, nil)

	cs := newTestCommandService(new(MockMQTTClient), mockGCS, StateConnected)
	result := cs.Execute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
	})

	assert.Equal(t, models.CommandStatusSuccess, result.Status)
	assert.Equal(t, "Command executed successfully", result.Message)
	assert.Equal(t, "drone-1", result.VehicleID)
	assert.Equal(t, constants.CommandArm, result.CommandCode)
}

func TestCommandService_Execute_ValidationRejected(t *testing.T) {
	mockGCS := new(MockGCSClient)
	cs := newTestCommandService(new(MockMQTTClient), mockGCS, StateConnected)

	result := cs.Execute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: "bogus",
	})

	assert.Equal(t, models.CommandStatusRejected, result.Status)
	assert.Equal(t, "Invalid command code: bogus", result.Message)
	mockGCS.AssertNotCalled(t, "ExecuteCommand", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommandService_Execute_NotConnectedRejected(t *testing.T) {
	mockGCS := new(MockGCSClient)
	cs := newTestCommandService(new(MockMQTTClient), mockGCS, StateDisconnected)

	result := cs.Execute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
	})

	assert.Equal(t, models.CommandStatusRejected, result.Status)
	assert.Equal(t, "Not connected to UCS server", result.Message)
}

func TestCommandService_Execute_ReturnedFalseFails(t *testing.T) {
	mockGCS := new(MockGCSClient)
	mockGCS.On("IsConnected").Return(true)
	mockGCS.On("ExecuteCommand", mock.Anything, "drone-1", constants.CommandArm, mock.Anything).
		Return(false, nil)

	cs := newTestCommandService(new(MockMQTTClient), mockGCS, StateConnected)
	result := cs.Execute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
	})

	assert.Equal(t, models.CommandStatusFailed, result.Status)
	assert.Equal(t, "Command execution returned false", result.Message)
}

func TestCommandService_Execute_TimeoutClassified(t *testing.T) {
	mockGCS := new(MockGCSClient)
	mockGCS.On("IsConnected").Return(true)
	mockGCS.On("ExecuteCommand", mock.Anything, "drone-1", constants.CommandArm, mock.Anything).
		Return(false, context.DeadlineExceeded)

	cs := newTestCommandService(new(MockMQTTClient), mockGCS, StateConnected)
	result := cs.Execute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
	})

	assert.Equal(t, models.CommandStatusTimeout, result.Status)
}

func TestCommandService_Execute_VendorErrorFails(t *testing.T) {
	mockGCS := new(MockGCSClient)
	mockGCS.On("IsConnected").Return(true)
	mockGCS.On("ExecuteCommand", mock.Anything, "drone-1", constants.CommandArm, mock.Anything).
		Return(false, gcs.Errorf(gcs.KindVendor, "vehicle refused command"))

	cs := newTestCommandService(new(MockMQTTClient), mockGCS, StateConnected)
	result := cs.Execute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
	})

	assert.Equal(t, models.CommandStatusFailed, result.Status)
	assert.Contains(t, result.Message, "vehicle refused command")
}

// With retry enabled and the endpoint down, the pre-execution reconnect must
// not sit in the backoff loop past the command timeout: the command still
// gets its terminal result promptly.
func TestCommandService_ReconnectWaitBoundedByTimeout(t *testing.T) {
	mockGCS := new(MockGCSClient)
	mockGCS.On("IsConnected").Return(false)
	mockGCS.On("Connect", mock.Anything, "localhost", 3334, "", "").
		Return(errors.New("connection refused"))

	conn := NewConnectionService(ConnectionSettings{
		Host: "localhost", Port: 3334,
		RetryEnabled: true,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
	}, mockGCS, nil, nil, newTestPublisher(new(MockMQTTClient)), nil, zerolog.Nop())

	mockMQTT := new(MockMQTTClient)
	cs := NewCommandService("commands", 1, 100*time.Millisecond, mockMQTT, conn, mockGCS,
		NewCommandValidator(zerolog.Nop()), newTestPublisher(mockMQTT), zerolog.Nop())

	start := time.Now()
	result := cs.ensureConnectionAndExecute(context.Background(), models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
	})

	assert.Equal(t, models.CommandStatusRejected, result.Status)
	assert.Equal(t, "Not connected to UCS server", result.Message)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommandService_Start_SubscribeFailure(t *testing.T) {
	mockMQTT := new(MockMQTTClient)
	mockMQTT.On("Subscribe", "commands", byte(1), mock.Anything).
		Return(&stubToken{err: errors.New("subscribe failed")})

	cs := newTestCommandService(mockMQTT, new(MockGCSClient), StateConnected)
	err := cs.Start()

	assert.EqualError(t, err, "subscribe failed")
	mockMQTT.AssertExpectations(t)
}

// TestCommandService_HandleMessage_PublishesResult runs the bus path end to
// end: inbound JSON command, execution, one terminal result on the bus.
func TestCommandService_HandleMessage_PublishesResult(t *testing.T) {
	mockMQTT := new(MockMQTTClient)
	mockGCS := new(MockGCSClient)
	mockGCS.On("IsConnected").Return(true)
	mockGCS.On("ExecuteCommand", mock.Anything, "drone-1", constants.CommandArm, mock.Anything).
		Return(true, nil)

	published := make(chan []byte, 1)
	mockMQTT.On("Publish", "command-results", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) {
			published <- args.Get(3).([]byte)
		}).
		Return(&stubToken{})

	cs := newTestCommandService(mockMQTT, mockGCS, StateConnected)

	payload, _ := json.Marshal(models.CommandExecution{VehicleID: "drone-1", CommandCode: constants.CommandArm})
	cs.HandleMessage(nil, &mockMessage{topic: "commands", payload: payload})

	select {
	case raw := <-published:
		var result models.CommandResult
		assert.NoError(t, json.Unmarshal(raw, &result))
		assert.Equal(t, models.CommandStatusSuccess, result.Status)
		assert.Equal(t, "drone-1", result.VehicleID)
	case <-time.After(2 * time.Second):
		t.Fatal("no command result published")
	}
}
