package ucs

import (
	"encoding/json"
	"math"
	"time"

	"github.com/OsiaDev/core/pkg/gcs"
)

// telemetryNotification is the wire shape of one telemetry push event.
type telemetryNotification struct {
	VehicleID string           `json:"vehicleId"`
	Telemetry []telemetryField `json:"telemetry"`
}

type telemetryField struct {
	Semantic string      `json:"semantic"`
	Code     string      `json:"code,omitempty"`
	Value    interface{} `json:"value"`
}

// vehicleLogNotification is the wire shape of a vehicle log push event, used
// by the server to report mission completion.
type vehicleLogNotification struct {
	VehicleID  string `json:"vehicleId"`
	Message    string `json:"message"`
	TimeMillis int64  `json:"time"`
}

// decodeTelemetry converts a raw telemetry notification into the degrees-based
// snapshot the pipeline consumes. The server reports angles in radians and
// 0.0 for coordinates it did not receive; coordinates are rounded to 5
// decimals (~1.1 m) and altitude to 2 so float jitter cannot masquerade as
// movement.
func decodeTelemetry(data json.RawMessage) (gcs.RawTelemetry, error) {
	var note telemetryNotification
	if err := json.Unmarshal(data, &note); err != nil {
		return gcs.RawTelemetry{}, err
	}

	raw := gcs.RawTelemetry{
		VehicleID: note.VehicleID,
		Fields:    map[string]interface{}{},
		Timestamp: time.Now(),
	}

	for _, field := range note.Telemetry {
		applyTelemetryField(&raw, field)
	}

	raw.Latitude = roundTo(raw.Latitude, 5)
	raw.Longitude = roundTo(raw.Longitude, 5)
	raw.Altitude = roundTo(raw.Altitude, 2)

	return raw, nil
}

func applyTelemetryField(raw *gcs.RawTelemetry, field telemetryField) {
	switch field.Semantic {
	case "S_LATITUDE":
		raw.Latitude = toDegrees(numeric(field.Value))
	case "S_LONGITUDE":
		raw.Longitude = toDegrees(numeric(field.Value))
	case "S_ALTITUDE_AGL":
		raw.Altitude = numeric(field.Value)
	case "S_ALTITUDE_AMSL":
		raw.Fields["altitudeAmsl"] = numeric(field.Value)
	case "S_GROUND_SPEED":
		raw.Fields["groundSpeed"] = numeric(field.Value)
	case "S_AIR_SPEED":
		raw.Fields["airSpeed"] = numeric(field.Value)
	case "S_VERTICAL_SPEED":
		raw.Fields["verticalSpeed"] = numeric(field.Value)
	case "S_HEADING":
		raw.Fields["heading"] = numeric(field.Value)
	case "S_VOLTAGE":
		raw.Fields["batteryLevel"] = batteryLevel(numeric(field.Value))
	case "S_CURRENT":
		raw.Fields["current"] = numeric(field.Value)
	case "S_SATELLITE_COUNT":
		raw.Fields["satelliteCount"] = numeric(field.Value)
	case "S_GPS_FIX_TYPE":
		raw.Fields["gpsFixType"] = numeric(field.Value)
	case "S_ROLL":
		raw.Fields["roll"] = numeric(field.Value)
	case "S_PITCH":
		raw.Fields["pitch"] = numeric(field.Value)
	case "S_YAW":
		raw.Fields["yaw"] = numeric(field.Value)
	case "S_RC_LINK_QUALITY":
		raw.Fields["rcLinkQuality"] = numeric(field.Value)
	case "S_GCS_LINK_QUALITY":
		raw.Fields["gcsLinkQuality"] = numeric(field.Value)
	case "S_CONTROL_MODE":
		raw.Fields["controlMode"] = field.Value
	case "S_FLIGHT_MODE":
		raw.Fields["flightMode"] = field.Value
	case "S_GROUND_ELEVATION":
		raw.Fields["groundElevation"] = numeric(field.Value)
	default:
		// Unrecognized semantics are preserved under their field code.
		if field.Code != "" {
			raw.Fields[field.Code] = field.Value
		}
	}
}

// batteryLevel maps a 4S LiPo pack voltage onto a 0-100 percentage.
func batteryLevel(voltage float64) float64 {
	const minVoltage = 14.8
	const maxVoltage = 16.8

	percentage := (voltage - minVoltage) / (maxVoltage - minVoltage) * 100
	return math.Max(0, math.Min(100, percentage))
}

func toDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

func numeric(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
