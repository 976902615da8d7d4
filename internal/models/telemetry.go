package models

import (
	"time"
)

// DroneLocation is a geographic position in degrees with altitude in meters AGL.
type DroneLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// TelemetrySnapshot represents one reconciled position and sensor-field report
// for a single vehicle. The GCS reports 0.0 for coordinates it did not
// receive, so a snapshot is only considered located when at least one of
// latitude/longitude is non-zero.
type TelemetrySnapshot struct {
	VehicleID string                 `json:"vehicleId"`
	Location  DroneLocation          `json:"location"`
	Fields    map[string]interface{} `json:"fields"`
	Timestamp time.Time              `json:"timestamp"`
}

// HasLocation reports whether the snapshot carries any usable coordinate.
func (t TelemetrySnapshot) HasLocation() bool {
	return t.Location.Latitude != 0.0 || t.Location.Longitude != 0.0
}

// GroundSpeed returns the ground speed field if the GCS reported one.
func (t TelemetrySnapshot) GroundSpeed() (float64, bool) {
	return t.numericField("groundSpeed")
}

// BatteryLevel returns the battery percentage field if present.
func (t TelemetrySnapshot) BatteryLevel() (float64, bool) {
	return t.numericField("batteryLevel")
}

// Heading returns the heading field in degrees if present.
func (t TelemetrySnapshot) Heading() (float64, bool) {
	return t.numericField("heading")
}

func (t TelemetrySnapshot) numericField(key string) (float64, bool) {
	v, ok := t.Fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
