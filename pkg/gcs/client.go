package gcs

import (
	"context"
	"time"
)

// RawTelemetry is one unprocessed telemetry notification pushed by the GCS.
// Coordinates are already converted to degrees and rounded by the session
// adapter; zero values mean the GCS did not report that axis.
type RawTelemetry struct {
	VehicleID string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Fields    map[string]interface{}
	Timestamp time.Time
}

// RawMissionEvent is a mission-complete log entry pushed by the GCS.
type RawMissionEvent struct {
	VehicleID string
	Message   string
	Timestamp time.Time
}

// Mission is an opaque handle to a mission object held by the GCS.
type Mission struct {
	ID    int64
	Name  string
	Owner string
}

// Route is an opaque handle to a named route stored under a mission.
type Route struct {
	ID            int64
	Name          string
	WaypointCount int
}

// Vehicle is an opaque handle to a vehicle registered with the GCS.
type Vehicle struct {
	ID      int64
	Name    string
	Profile string
}

// RouteSpec is the route definition uploaded for a vehicle. Coordinates are
// in degrees; the session adapter converts to the radians the GCS expects.
type RouteSpec struct {
	Name             string
	Waypoints        []RoutePoint
	Speed            float64
	Altitude         float64
	AcceptanceRadius float64
	MaxSpeed         float64
	MaxAltitude      float64
}

// RoutePoint is one waypoint of a RouteSpec.
type RoutePoint struct {
	Latitude  float64
	Longitude float64
}

// Client is the session-based vehicle-control endpoint surface. All methods
// except IsConnected require an established session and fail with a
// KindNotConnected error otherwise. Commands and route uploads acquire
// exclusive vehicle control for the duration of the call and release it on
// every exit path.
type Client interface {
	Connect(ctx context.Context, host string, port int, username, password string) error
	Disconnect() error
	IsConnected() bool

	// Telemetry and MissionEvents expose the push-notification streams.
	// Both channels are owned by the client; they close when the session
	// drops so consumers can trigger reconnection.
	Telemetry() <-chan RawTelemetry
	MissionEvents() <-chan RawMissionEvent

	ExecuteCommand(ctx context.Context, vehicleID, commandCode string, args map[string]float64) (bool, error)

	FindOrCreateMission(ctx context.Context, name string) (Mission, error)
	// FindRouteByName returns ok=false when no route has that name; that is
	// a normal outcome, not an error.
	FindRouteByName(ctx context.Context, name string) (Route, bool, error)
	CreateAndUploadRoute(ctx context.Context, mission Mission, vehicleID string, spec RouteSpec) (Vehicle, error)
	UploadExistingRoute(ctx context.Context, vehicleID string, route Route) (Vehicle, error)
	CreateMissionVehicle(ctx context.Context, mission Mission, vehicle Vehicle) (bool, error)
}
