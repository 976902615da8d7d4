package services

import (
	"github.com/OsiaDev/core/internal/constants"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
)

var validCommands = map[string]struct{}{
	constants.CommandArm:                  {},
	constants.CommandDisarm:               {},
	constants.CommandAuto:                 {},
	constants.CommandManual:               {},
	constants.CommandGuided:               {},
	constants.CommandJoystick:             {},
	constants.CommandTakeoff:              {},
	constants.CommandLand:                 {},
	constants.CommandEmergencyLand:        {},
	constants.CommandReturnToHome:         {},
	constants.CommandMissionPause:         {},
	constants.CommandMissionResume:        {},
	constants.CommandStartRoute:           {},
	constants.CommandPauseRoute:           {},
	constants.CommandResumeRoute:          {},
	constants.CommandStopRoute:            {},
	constants.CommandWaypoint:             {},
	constants.CommandDirectVehicleControl: {},
}

// noArgCommands take no arguments; extra arguments are tolerated with a
// warning, not rejected.
var noArgCommands = map[string]struct{}{
	constants.CommandArm:           {},
	constants.CommandDisarm:        {},
	constants.CommandAuto:          {},
	constants.CommandManual:        {},
	constants.CommandGuided:        {},
	constants.CommandEmergencyLand: {},
	constants.CommandReturnToHome:  {},
	constants.CommandMissionPause:  {},
	constants.CommandMissionResume: {},
	constants.CommandStartRoute:    {},
	constants.CommandPauseRoute:    {},
	constants.CommandResumeRoute:   {},
	constants.CommandStopRoute:     {},
}

var waypointArgs = map[string]struct{}{
	"latitude": {}, "longitude": {}, "altitude_amsl": {}, "altitude_agl": {},
	"altitude_origin": {}, "ground_speed": {}, "vertical_speed": {},
	"acceptance_radius": {}, "heading": {},
}

var controlArgs = map[string]struct{}{
	"pitch": {}, "roll": {}, "yaw": {}, "throttle": {},
}

// CommandValidator enforces the command whitelist and each code's argument
// contract before anything reaches the GCS.
type CommandValidator struct {
	logger zerolog.Logger
}

// NewCommandValidator creates a CommandValidator.
func NewCommandValidator(logger zerolog.Logger) *CommandValidator {
	return &CommandValidator{logger: logger}
}

// Validate returns a KindValidation error for any request that must be
// rejected without touching the GCS.
func (cv *CommandValidator) Validate(command models.CommandExecution) error {
	if _, ok := validCommands[command.CommandCode]; !ok {
		return gcs.Errorf(gcs.KindValidation, "Invalid command code: %s", command.CommandCode)
	}
	return cv.validateArguments(command)
}

func (cv *CommandValidator) validateArguments(command models.CommandExecution) error {
	if _, ok := noArgCommands[command.CommandCode]; ok {
		if len(command.Arguments) > 0 {
			cv.logger.Warn().
				Str("command", command.CommandCode).
				Int("count", len(command.Arguments)).
				Msg("Command does not require arguments, but some were provided")
		}
		return nil
	}

	switch command.CommandCode {
	case constants.CommandWaypoint:
		return cv.validateWaypoint(command)
	case constants.CommandDirectVehicleControl:
		cv.warnUnknownArguments(command.Arguments, controlArgs)
		return nil
	case constants.CommandTakeoff, constants.CommandLand:
		return cv.validateAltitude(command)
	}
	return nil
}

func (cv *CommandValidator) validateWaypoint(command models.CommandExecution) error {
	args := command.Arguments
	if len(args) == 0 {
		return gcs.Errorf(gcs.KindValidation, "Waypoint command requires arguments")
	}

	lat, hasLat := args["latitude"]
	lon, hasLon := args["longitude"]
	if !hasLat || !hasLon {
		return gcs.Errorf(gcs.KindValidation, "Waypoint command requires latitude and longitude")
	}

	if lat < -90 || lat > 90 {
		return gcs.Errorf(gcs.KindValidation, "Invalid latitude: %v", lat)
	}
	if lon < -180 || lon > 180 {
		return gcs.Errorf(gcs.KindValidation, "Invalid longitude: %v", lon)
	}

	cv.warnUnknownArguments(args, waypointArgs)
	return nil
}

func (cv *CommandValidator) validateAltitude(command models.CommandExecution) error {
	if altitude, ok := command.Arguments["altitude"]; ok && altitude < 0 {
		return gcs.Errorf(gcs.KindValidation, "Altitude cannot be negative: %v", altitude)
	}
	return nil
}

func (cv *CommandValidator) warnUnknownArguments(args map[string]float64, valid map[string]struct{}) {
	for key := range args {
		if _, ok := valid[key]; !ok {
			cv.logger.Warn().Str("argument", key).Msg("Unknown argument")
		}
	}
}
