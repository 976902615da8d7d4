package constants

import "time"

// Default timeouts for bus-driven operations.
const (
	DefaultCommandTimeout = 30 * time.Second
	DefaultMissionTimeout = 5 * time.Minute

	// RouteStartSettleDelay is the pause between AUTO and START_ROUTE in the
	// mission command sequence, giving the autopilot time to switch modes.
	RouteStartSettleDelay = 2 * time.Second
)

// Route defaults applied when the mission request leaves them unset.
const (
	DefaultRouteSpeed       = 5.0  // m/s
	DefaultRouteAltitude    = 50.0 // meters AGL
	DefaultAcceptanceRadius = 5.0  // meters
	DefaultRouteMaxSpeed    = 25.0 // m/s
	DefaultRouteMaxAltitude = 10000.0
)

// Command codes accepted from the bus.
const (
	CommandArm                  = "arm"
	CommandDisarm               = "disarm"
	CommandAuto                 = "auto"
	CommandManual               = "manual"
	CommandGuided               = "guided"
	CommandJoystick             = "joystick"
	CommandTakeoff              = "takeoff_command"
	CommandLand                 = "land_command"
	CommandEmergencyLand        = "emergency_land"
	CommandReturnToHome         = "return_to_home"
	CommandMissionPause         = "mission_pause"
	CommandMissionResume        = "mission_resume"
	CommandStartRoute           = "start_route"
	CommandPauseRoute           = "pause_route"
	CommandResumeRoute          = "resume_route"
	CommandStopRoute            = "stop_route"
	CommandWaypoint             = "waypoint"
	CommandDirectVehicleControl = "direct_vehicle_control"
)
