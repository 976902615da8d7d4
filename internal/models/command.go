package models

import (
	"time"
)

// CommandStatus is the terminal outcome of one command or mission attempt.
type CommandStatus string

const (
	CommandStatusSuccess  CommandStatus = "SUCCESS"
	CommandStatusFailed   CommandStatus = "FAILED"
	CommandStatusRejected CommandStatus = "REJECTED"
	CommandStatusTimeout  CommandStatus = "TIMEOUT"
)

// CommandExecution is a command request for a single vehicle as it arrives
// on the bus.
type CommandExecution struct {
	VehicleID   string             `json:"vehicleId"`
	CommandCode string             `json:"commandCode"`
	Arguments   map[string]float64 `json:"arguments"`
}

// CommandResult is the immutable record published after every command
// attempt, exactly one per attempt.
type CommandResult struct {
	VehicleID   string        `json:"vehicleId"`
	CommandCode string        `json:"commandCode"`
	Status      CommandStatus `json:"status"`
	Message     string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewCommandSuccess builds a SUCCESS result for the given command.
func NewCommandSuccess(vehicleID, commandCode string) CommandResult {
	return CommandResult{
		VehicleID:   vehicleID,
		CommandCode: commandCode,
		Status:      CommandStatusSuccess,
		Message:     "Command executed successfully",
		Timestamp:   time.Now(),
	}
}

// NewCommandResult builds a result with an explicit status and message.
func NewCommandResult(vehicleID, commandCode string, status CommandStatus, message string) CommandResult {
	return CommandResult{
		VehicleID:   vehicleID,
		CommandCode: commandCode,
		Status:      status,
		Message:     message,
		Timestamp:   time.Now(),
	}
}
