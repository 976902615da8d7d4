package models

import (
	"strconv"
	"strings"
	"time"
)

// VehicleStatus is published on connection transitions and by the health
// reporter so operator tooling can track gateway and fleet availability.
type VehicleStatus struct {
	VehicleID string                 `json:"vehicleId"`
	Status    string                 `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// MissionComplete carries a mission-completion event extracted from the
// vehicle log pushed by the GCS.
type MissionComplete struct {
	VehicleID         string    `json:"vehicleId"`
	FlightTimeSeconds float64   `json:"flightTimeSeconds,omitempty"`
	Message           string    `json:"message"`
	MissionID         string    `json:"missionId,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewMissionComplete builds an event from a raw vehicle log entry. The GCS
// reports completion as a log line of the form
// "Current mission complete. Flight time: 93.46".
func NewMissionComplete(vehicleID, message string, at time.Time) MissionComplete {
	return MissionComplete{
		VehicleID:         vehicleID,
		FlightTimeSeconds: extractFlightTime(message),
		Message:           message,
		Timestamp:         at,
	}
}

func extractFlightTime(message string) float64 {
	const marker = "Flight time:"
	idx := strings.Index(message, marker)
	if idx < 0 {
		return 0
	}
	raw := strings.TrimSpace(message[idx+len(marker):])
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return seconds
}
