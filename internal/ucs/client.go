package ucs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OsiaDev/core/pkg/gcs"
	"github.com/rs/zerolog"
)

const (
	telemetryBuffer = 256
	missionBuffer   = 16
)

// Client drives a UCS server session and adapts it to the gcs.Client
// surface. One Client owns at most one session at a time; reconnection is
// the connection manager's job, the Client only reports stream loss by
// closing its notification channels.
type Client struct {
	logger zerolog.Logger

	mu      sync.Mutex
	session *Session

	connected atomic.Bool

	telemetryCh   chan gcs.RawTelemetry
	missionCh     chan gcs.RawMissionEvent
	streamsClosed bool
}

// NewClient creates a disconnected UCS client.
func NewClient(logger zerolog.Logger) *Client {
	c := &Client{logger: logger}
	c.resetStreams()
	return c
}

// Connect dials the UCS server, authenticates and subscribes to telemetry
// and vehicle-log push notifications. On success the notification channels
// returned by Telemetry and MissionEvents are live until the session drops.
func (c *Client) Connect(ctx context.Context, host string, port int, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}

	c.resetStreams()

	session, err := Dial(ctx, host, port, c.handleNotification, c.handleSessionLost, c.logger)
	if err != nil {
		return gcs.NewError(gcs.KindTransport, "connect", err)
	}

	if err := session.Login(ctx, username, password); err != nil {
		_ = session.Close()
		return gcs.NewError(gcs.KindTransport, "login", err)
	}

	if err := session.Call(ctx, "subscribe", map[string]interface{}{
		"events": []string{"telemetry", "vehicleLog"},
	}, nil); err != nil {
		_ = session.Close()
		return gcs.NewError(gcs.KindTransport, "subscribe", err)
	}

	c.session = session
	c.connected.Store(true)
	c.logger.Info().Str("host", host).Int("port", port).Msg("UCS session established")
	return nil
}

// Disconnect tears the session down. Idempotent; the notification channels
// are closed so stream consumers terminate cleanly.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected.Store(false)
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
	c.closeStreams()
	return nil
}

// IsConnected reports whether a live session exists.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Telemetry returns the telemetry stream for the current session.
func (c *Client) Telemetry() <-chan gcs.RawTelemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.telemetryCh
}

// MissionEvents returns the mission-complete stream for the current session.
func (c *Client) MissionEvents() <-chan gcs.RawMissionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missionCh
}

// ExecuteCommand acquires exclusive control of the vehicle, sends the
// command and releases control on every exit path.
func (c *Client) ExecuteCommand(ctx context.Context, vehicleID, commandCode string, args map[string]float64) (bool, error) {
	session, err := c.currentSession()
	if err != nil {
		return false, err
	}

	vehicle, err := c.findVehicle(ctx, session, vehicleID)
	if err != nil {
		return false, err
	}

	if err := session.Call(ctx, "gainVehicleControl", vehicleRef{ID: vehicle.ID}, nil); err != nil {
		return false, c.wrapCallError("gainVehicleControl", err)
	}
	defer c.releaseControl(session, vehicle.ID, vehicleID)

	var result struct {
		Success bool `json:"success"`
	}
	params := map[string]interface{}{
		"vehicleId": vehicle.ID,
		"code":      commandCode,
		"arguments": args,
	}
	if err := session.Call(ctx, "sendCommand", params, &result); err != nil {
		return false, c.wrapCallError("sendCommand", err)
	}

	c.logger.Info().
		Str("vehicle_id", vehicleID).
		Str("command", commandCode).
		Bool("success", result.Success).
		Msg("Command sent to vehicle")
	return result.Success, nil
}

// FindOrCreateMission looks a mission up by name and creates it under the
// session's user when absent. Idempotent.
func (c *Client) FindOrCreateMission(ctx context.Context, name string) (gcs.Mission, error) {
	session, err := c.currentSession()
	if err != nil {
		return gcs.Mission{}, err
	}

	var missions []missionRef
	if err := session.Call(ctx, "listMissions", nil, &missions); err != nil {
		return gcs.Mission{}, c.wrapCallError("listMissions", err)
	}
	for _, m := range missions {
		if m.Name == name {
			return gcs.Mission{ID: m.ID, Name: m.Name, Owner: m.Owner}, nil
		}
	}

	var owner struct {
		Username string `json:"username"`
	}
	if err := session.Call(ctx, "currentUser", nil, &owner); err != nil {
		return gcs.Mission{}, c.wrapCallError("currentUser", err)
	}

	var created missionRef
	params := map[string]string{"name": name, "owner": owner.Username}
	if err := session.Call(ctx, "createMission", params, &created); err != nil {
		return gcs.Mission{}, c.wrapCallError("createMission", err)
	}

	c.logger.Info().Str("mission", name).Msg("Mission created")
	return gcs.Mission{ID: created.ID, Name: created.Name, Owner: created.Owner}, nil
}

// FindRouteByName returns the named route, or ok=false when it does not exist.
func (c *Client) FindRouteByName(ctx context.Context, name string) (gcs.Route, bool, error) {
	session, err := c.currentSession()
	if err != nil {
		return gcs.Route{}, false, err
	}

	var routes []routeRef
	if err := session.Call(ctx, "listRoutes", nil, &routes); err != nil {
		return gcs.Route{}, false, c.wrapCallError("listRoutes", err)
	}
	for _, r := range routes {
		if r.Name == name {
			return gcs.Route{ID: r.ID, Name: r.Name, WaypointCount: r.WaypointCount}, true, nil
		}
	}
	return gcs.Route{}, false, nil
}

// CreateAndUploadRoute builds a new route under the mission, persists it and
// uploads it to the vehicle. Waypoints arrive in degrees and are converted
// to the radians the server expects.
func (c *Client) CreateAndUploadRoute(ctx context.Context, mission gcs.Mission, vehicleID string, spec gcs.RouteSpec) (gcs.Vehicle, error) {
	session, err := c.currentSession()
	if err != nil {
		return gcs.Vehicle{}, err
	}

	vehicle, err := c.findVehicle(ctx, session, vehicleID)
	if err != nil {
		return gcs.Vehicle{}, err
	}

	points := make([]map[string]float64, 0, len(spec.Waypoints))
	for _, wp := range spec.Waypoints {
		points = append(points, map[string]float64{
			"latitude":  toRadians(wp.Latitude),
			"longitude": toRadians(wp.Longitude),
			"altitude":  spec.Altitude,
		})
	}

	routePayload := map[string]interface{}{
		"missionId":        mission.ID,
		"name":             spec.Name,
		"vehicleProfile":   vehicle.Profile,
		"points":           points,
		"speed":            spec.Speed,
		"maxSpeed":         spec.MaxSpeed,
		"maxAltitude":      spec.MaxAltitude,
		"safeAltitude":     spec.Altitude,
		"acceptanceRadius": spec.AcceptanceRadius,
		"altitudeType":     "AGL",
		"turnType":         "STOP_AND_TURN",
		"failsafes": []map[string]string{
			{"reason": "GPS_LOST", "action": "WAIT"},
		},
	}

	var processed struct {
		RouteID int64 `json:"routeId"`
	}
	if err := session.Call(ctx, "processRoute", routePayload, &processed); err != nil {
		return gcs.Vehicle{}, c.wrapCallError("processRoute", err)
	}

	if err := c.uploadRoute(ctx, session, vehicle, vehicleID, processed.RouteID); err != nil {
		return gcs.Vehicle{}, err
	}

	c.logger.Info().
		Str("route", spec.Name).
		Str("vehicle_id", vehicleID).
		Int("waypoints", len(spec.Waypoints)).
		Msg("Route created and uploaded")
	return gcs.Vehicle{ID: vehicle.ID, Name: vehicle.Name, Profile: vehicle.Profile}, nil
}

// UploadExistingRoute uploads a stored route to the vehicle.
func (c *Client) UploadExistingRoute(ctx context.Context, vehicleID string, route gcs.Route) (gcs.Vehicle, error) {
	session, err := c.currentSession()
	if err != nil {
		return gcs.Vehicle{}, err
	}

	vehicle, err := c.findVehicle(ctx, session, vehicleID)
	if err != nil {
		return gcs.Vehicle{}, err
	}

	if err := c.uploadRoute(ctx, session, vehicle, vehicleID, route.ID); err != nil {
		return gcs.Vehicle{}, err
	}

	c.logger.Info().Str("route", route.Name).Str("vehicle_id", vehicleID).Msg("Existing route uploaded")
	return gcs.Vehicle{ID: vehicle.ID, Name: vehicle.Name, Profile: vehicle.Profile}, nil
}

// CreateMissionVehicle registers the vehicle under the mission record.
func (c *Client) CreateMissionVehicle(ctx context.Context, mission gcs.Mission, vehicle gcs.Vehicle) (bool, error) {
	session, err := c.currentSession()
	if err != nil {
		return false, err
	}

	var result struct {
		Success bool `json:"success"`
	}
	params := map[string]int64{"missionId": mission.ID, "vehicleId": vehicle.ID}
	if err := session.Call(ctx, "createMissionVehicle", params, &result); err != nil {
		return false, c.wrapCallError("createMissionVehicle", err)
	}
	return result.Success, nil
}

type vehicleRef struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

type missionRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

type routeRef struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	WaypointCount int    `json:"waypointCount"`
}

func (c *Client) currentSession() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected.Load() || c.session == nil {
		return nil, gcs.Errorf(gcs.KindNotConnected, "not connected to UCS server")
	}
	return c.session, nil
}

func (c *Client) findVehicle(ctx context.Context, session *Session, vehicleID string) (vehicleRef, error) {
	var vehicles []vehicleRef
	if err := session.Call(ctx, "listVehicles", nil, &vehicles); err != nil {
		return vehicleRef{}, c.wrapCallError("listVehicles", err)
	}
	for _, v := range vehicles {
		if v.Name == vehicleID {
			return v, nil
		}
	}
	return vehicleRef{}, gcs.Errorf(gcs.KindValidation, "vehicle not found: %s", vehicleID)
}

// uploadRoute performs the control-scoped upload: control is always released,
// even when the upload fails.
func (c *Client) uploadRoute(ctx context.Context, session *Session, vehicle vehicleRef, vehicleID string, routeID int64) error {
	if err := session.Call(ctx, "gainVehicleControl", vehicleRef{ID: vehicle.ID}, nil); err != nil {
		return c.wrapCallError("gainVehicleControl", err)
	}
	defer c.releaseControl(session, vehicle.ID, vehicleID)

	params := map[string]int64{"vehicleId": vehicle.ID, "routeId": routeID}
	if err := session.Call(ctx, "uploadRoute", params, nil); err != nil {
		return c.wrapCallError("uploadRoute", err)
	}
	return nil
}

// releaseControl lets go of the vehicle. Release happens on a fresh context
// so an expired caller deadline cannot leave the vehicle locked.
func (c *Client) releaseControl(session *Session, vehicleNum int64, vehicleID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := session.Call(ctx, "releaseVehicleControl", vehicleRef{ID: vehicleNum}, nil); err != nil {
		c.logger.Warn().Err(err).Str("vehicle_id", vehicleID).Msg("Failed to release vehicle control")
		return
	}
	c.logger.Debug().Str("vehicle_id", vehicleID).Msg("Vehicle control released")
}

func (c *Client) wrapCallError(op string, err error) error {
	if errors.Is(err, ErrSessionClosed) {
		return gcs.NewError(gcs.KindTransport, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return gcs.NewError(gcs.KindTimeout, op, err)
	}
	return gcs.NewError(gcs.KindVendor, op, err)
}

func (c *Client) handleNotification(note Notification) {
	switch note.Event {
	case "telemetry":
		raw, err := decodeTelemetry(note.Data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Dropping undecodable telemetry notification")
			return
		}
		c.deliverTelemetry(raw)
	case "vehicleLog":
		var entry vehicleLogNotification
		if err := json.Unmarshal(note.Data, &entry); err != nil {
			c.logger.Warn().Err(err).Msg("Dropping undecodable vehicle log notification")
			return
		}
		c.deliverMissionEvent(gcs.RawMissionEvent{
			VehicleID: entry.VehicleID,
			Message:   entry.Message,
			Timestamp: time.UnixMilli(entry.TimeMillis),
		})
	}
}

func (c *Client) deliverTelemetry(raw gcs.RawTelemetry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamsClosed {
		return
	}

	select {
	case c.telemetryCh <- raw:
	default:
		// Slow consumer: drop the new report rather than stall the session.
		c.logger.Warn().Str("vehicle_id", raw.VehicleID).Msg("Telemetry buffer full, dropping report")
	}
}

func (c *Client) deliverMissionEvent(event gcs.RawMissionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamsClosed {
		return
	}

	select {
	case c.missionCh <- event:
	default:
		c.logger.Warn().Str("vehicle_id", event.VehicleID).Msg("Mission event buffer full, dropping event")
	}
}

func (c *Client) handleSessionLost(cause error) {
	c.logger.Error().Err(cause).Msg("UCS session lost")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected.Store(false)
	c.session = nil
	c.closeStreams()
}

// resetStreams allocates fresh notification channels for a new session.
// Caller holds c.mu or is the constructor.
func (c *Client) resetStreams() {
	c.telemetryCh = make(chan gcs.RawTelemetry, telemetryBuffer)
	c.missionCh = make(chan gcs.RawMissionEvent, missionBuffer)
	c.streamsClosed = false
}

// closeStreams closes the current session's channels exactly once so stream
// consumers observe end-of-session. Caller holds c.mu.
func (c *Client) closeStreams() {
	if c.streamsClosed {
		return
	}
	c.streamsClosed = true
	close(c.telemetryCh)
	close(c.missionCh)
}
