package models

import (
	"errors"
	"fmt"
)

// Waypoint is a single route point in degrees as sent by operator tooling.
// Coordinates are converted to radians only at the GCS boundary.
type Waypoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the waypoint against WGS84 coordinate ranges.
func (w Waypoint) Validate() error {
	if w.Latitude < -90 || w.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %v", w.Latitude)
	}
	if w.Longitude < -180 || w.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %v", w.Longitude)
	}
	return nil
}

// DroneExecution describes the route work for one vehicle inside a mission.
// A drone without waypoints is legal and skips route creation entirely.
type DroneExecution struct {
	VehicleID    string     `json:"vehicleId"`
	RouteID      string     `json:"routeId,omitempty"`
	Waypoints    []Waypoint `json:"waypoints"`
	SafeAltitude float64    `json:"safeAltitude,omitempty"`
	MaxAltitude  float64    `json:"maxAltitude,omitempty"`
}

// HasWaypoints reports whether the drone has any route work assigned.
func (d DroneExecution) HasWaypoints() bool {
	return len(d.Waypoints) > 0
}

// RouteName resolves the route name for the drone: an explicit routeId wins,
// otherwise the name is derived from the mission and vehicle.
func (d DroneExecution) RouteName(missionID string) string {
	if d.RouteID != "" {
		return d.RouteID
	}
	return fmt.Sprintf("%s_%s", missionID, d.VehicleID)
}

// MissionExecution is a multi-vehicle mission request as it arrives on the bus.
type MissionExecution struct {
	MissionID string           `json:"missionId"`
	Drones    []DroneExecution `json:"drones"`
	Priority  int              `json:"priority"`
}

// Validate enforces the structural invariants of a mission request.
func (m MissionExecution) Validate() error {
	if m.MissionID == "" {
		return errors.New("mission ID cannot be empty")
	}
	if len(m.Drones) == 0 {
		return errors.New("drone list cannot be empty")
	}
	for _, d := range m.Drones {
		if d.VehicleID == "" {
			return errors.New("vehicle ID cannot be empty")
		}
		for _, w := range d.Waypoints {
			if err := w.Validate(); err != nil {
				return fmt.Errorf("vehicle %s: %w", d.VehicleID, err)
			}
		}
	}
	return nil
}

// MissionCommandCode is the command code used on the aggregate mission result.
func (m MissionExecution) MissionCommandCode() string {
	return "execute_mission:" + m.MissionID
}
