package services

import (
	"testing"

	"github.com/OsiaDev/core/internal/constants"
	"github.com/OsiaDev/core/internal/models"
	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCommandValidator_AcceptsKnownCommands(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	for _, code := range []string{
		constants.CommandArm,
		constants.CommandDisarm,
		constants.CommandReturnToHome,
		constants.CommandStartRoute,
	} {
		err := cv.Validate(models.CommandExecution{VehicleID: "drone-1", CommandCode: code})
		assert.NoError(t, err, "command %s should be valid", code)
	}
}

func TestCommandValidator_RejectsUnknownCommand(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	err := cv.Validate(models.CommandExecution{VehicleID: "drone-1", CommandCode: "self_destruct"})

	assert.Error(t, err)
	assert.Equal(t, gcs.KindValidation, gcs.KindOf(err))
	assert.EqualError(t, err, "Invalid command code: self_destruct")
}

func TestCommandValidator_WaypointRequiresArguments(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	err := cv.Validate(models.CommandExecution{VehicleID: "drone-1", CommandCode: constants.CommandWaypoint})

	assert.EqualError(t, err, "Waypoint command requires arguments")
}

func TestCommandValidator_WaypointRequiresLatitudeAndLongitude(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	err := cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandWaypoint,
		Arguments:   map[string]float64{"latitude": 10.0},
	})

	assert.EqualError(t, err, "Waypoint command requires latitude and longitude")
}

func TestCommandValidator_WaypointCoordinateRanges(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	err := cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandWaypoint,
		Arguments:   map[string]float64{"latitude": 91.0, "longitude": 10.0},
	})
	assert.EqualError(t, err, "Invalid latitude: 91")

	err = cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandWaypoint,
		Arguments:   map[string]float64{"latitude": 10.0, "longitude": -181.0},
	})
	assert.EqualError(t, err, "Invalid longitude: -181")

	err = cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandWaypoint,
		Arguments:   map[string]float64{"latitude": 10.0, "longitude": 20.0, "altitude_agl": 50.0},
	})
	assert.NoError(t, err)
}

func TestCommandValidator_TakeoffRejectsNegativeAltitude(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	err := cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandTakeoff,
		Arguments:   map[string]float64{"altitude": -5.0},
	})
	assert.EqualError(t, err, "Altitude cannot be negative: -5")

	err = cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandTakeoff,
		Arguments:   map[string]float64{"altitude": 25.0},
	})
	assert.NoError(t, err)
}

// Extra arguments on a no-arg command are tolerated, not rejected.
func TestCommandValidator_ToleratesExtraArguments(t *testing.T) {
	cv := NewCommandValidator(zerolog.Nop())

	err := cv.Validate(models.CommandExecution{
		VehicleID:   "drone-1",
		CommandCode: constants.CommandArm,
		Arguments:   map[string]float64{"unused": 1.0},
	})

	assert.NoError(t, err)
}
