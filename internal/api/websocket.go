package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tvmmachans/Customo/internal/auth"
	"github.com/tvmmachans/Customo/internal/device"
	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/validation"
)

// Client → server message types.
const (
	WSTypeJoinDevice     = "join-device-monitoring"
	WSTypeLeaveDevice    = "leave-device-monitoring"
	WSTypeDeviceControl  = "device-control"
	WSTypeUpdateBattery  = "update-battery"
	WSTypeUpdateLocation = "update-location"
	WSTypePing           = "ping"
)

const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// wsBearerProtocol is the first entry of the Sec-WebSocket-Protocol
	// pair "bearer, <token>" used by browsers that cannot set headers.
	wsBearerProtocol = "bearer"

	// wsOpTimeout bounds each registry call made for a channel frame.
	wsOpTimeout = 10 * time.Second
)

// inbound is a client → server frame.
type inbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type deviceRef struct {
	DeviceID string `json:"deviceId"`
}

type controlFrame struct {
	DeviceID   string         `json:"deviceId"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type batteryFrame struct {
	DeviceID string `json:"deviceId"`
	Battery  *int   `json:"battery"`
}

type locationFrame struct {
	DeviceID string `json:"deviceId"`
	Location string `json:"location"`
}

type connectedPayload struct {
	UserID string    `json:"userId"`
	Role   auth.Role `json:"role"`
	Groups []string  `json:"groups"`
}

// errMissingDeviceID is reported for frames without a deviceId.
var errMissingDeviceID = validation.New("deviceId", "is required")

// Client is one authenticated WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	user *auth.User
}

func newClient(hub *Hub, conn *websocket.Conn, user *auth.User) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
		user: user,
	}
}

func (c *Client) userID() string {
	if c.user == nil {
		return ""
	}
	return c.user.ID
}

// wsToken finds the bearer token in the query string, the Authorization
// header or the Sec-WebSocket-Protocol pair, in that order.
func wsToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	if t := bearerToken(r); t != "" {
		return t
	}
	protocols := websocket.Subprotocols(r)
	if len(protocols) >= 2 && strings.EqualFold(protocols[0], wsBearerProtocol) {
		return protocols[1]
	}
	return ""
}

// handleWebSocket authenticates the caller and upgrades the connection.
// Authentication failures are answered with 401 before the upgrade.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := wsToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, msgTokenMissing)
		return
	}
	user, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{wsBearerProtocol},
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "user_id", user.ID)
		return
	}

	client := newClient(s.hub, conn, user)
	s.hub.Register(client)
	s.hub.Join(client, UserGroup(user.ID))
	if user.Role.HasAtLeast(auth.RoleTechnician) {
		s.hub.Join(client, GroupTechnicians)
	}
	if user.Role.HasAtLeast(auth.RoleAdmin) {
		s.hub.Join(client, GroupAdmins)
	}

	s.hub.SendTo(client, Message{
		Type: MsgConnected,
		Payload: connectedPayload{
			UserID: user.ID,
			Role:   user.Role,
			Groups: s.hub.Groups(client),
		},
	})
	s.logger.Info("websocket client authenticated", "user_id", user.ID, "role", user.Role)

	go client.writePump(s.cfg.WebSocket)
	go client.readPump(s, s.cfg.WebSocket)
}

// readPump reads frames until the connection fails, then removes the
// client from every group.
func (c *Client) readPump(s *Server, cfg config.WebSocketConfig) {
	defer func() {
		c.hub.LeaveAll(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	deadline := pingInterval + pongWait
	extend := func() {
		if deadline > 0 {
			//nolint:errcheck // Best-effort deadline reset
			c.conn.SetReadDeadline(time.Now().Add(deadline))
		}
	}
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "user_id", c.userID(), "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "user_id", c.userID(), "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		extend()
		s.handleFrame(c, data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = time.Minute
	}
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame processes one client frame. Failures are reported to the
// sender as error events; the connection stays open.
func (s *Server) handleFrame(c *Client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendFrameError(c, "", frameError("invalid JSON message"))
		return
	}
	s.metrics.RecordWSMessage("in", msg.Type)

	ctx, cancel := context.WithTimeout(s.ctx, wsOpTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case WSTypeJoinDevice:
		err = s.wsJoinDevice(ctx, c, msg)
	case WSTypeLeaveDevice:
		err = s.wsLeaveDevice(c, msg)
	case WSTypeDeviceControl:
		err = s.wsDeviceControl(ctx, c, msg)
	case WSTypeUpdateBattery:
		err = s.wsUpdateBattery(ctx, c, msg)
	case WSTypeUpdateLocation:
		err = s.wsUpdateLocation(ctx, c, msg)
	case WSTypePing:
		c.hub.SendTo(c, Message{Type: MsgPong, ID: msg.ID})
	default:
		err = frameError("unknown message type: " + msg.Type)
	}
	if err != nil {
		s.sendFrameError(c, msg.ID, err)
	}
}

func (s *Server) wsJoinDevice(ctx context.Context, c *Client, msg inbound) error {
	var ref deviceRef
	if err := decodePayload(msg.Payload, &ref); err != nil {
		return err
	}
	if ref.DeviceID == "" {
		return errMissingDeviceID
	}
	d, err := s.devices.Get(ctx, c.user.ID, ref.DeviceID)
	if err != nil {
		return err
	}
	c.hub.Join(c, DeviceGroup(d.ID))
	c.hub.SendTo(c, Message{
		Type:    MsgDeviceStatus,
		ID:      msg.ID,
		Payload: DevicePayload{DeviceID: d.ID, Device: d},
	})
	return nil
}

func (s *Server) wsLeaveDevice(c *Client, msg inbound) error {
	var ref deviceRef
	if err := decodePayload(msg.Payload, &ref); err != nil {
		return err
	}
	if ref.DeviceID == "" {
		return errMissingDeviceID
	}
	c.hub.Leave(c, DeviceGroup(ref.DeviceID))
	c.hub.SendTo(c, Message{
		Type:    MsgLeft,
		ID:      msg.ID,
		Payload: DevicePayload{DeviceID: ref.DeviceID},
	})
	return nil
}

// The mutation handlers reply through the registry's observer fan-out,
// which includes the sender's own connections.

func (s *Server) wsDeviceControl(ctx context.Context, c *Client, msg inbound) error {
	var f controlFrame
	if err := decodePayload(msg.Payload, &f); err != nil {
		return err
	}
	if f.DeviceID == "" {
		return errMissingDeviceID
	}
	cmd, err := device.ParseCommand(f.Action)
	if err != nil {
		return err
	}
	_, err = s.devices.Control(ctx, c.user.ID, f.DeviceID, cmd, f.Parameters)
	return err
}

func (s *Server) wsUpdateBattery(ctx context.Context, c *Client, msg inbound) error {
	var f batteryFrame
	if err := decodePayload(msg.Payload, &f); err != nil {
		return err
	}
	if f.DeviceID == "" {
		return errMissingDeviceID
	}
	if f.Battery == nil {
		return device.ErrMissingBattery
	}
	_, _, err := s.devices.ReportBattery(ctx, c.user.ID, f.DeviceID, *f.Battery)
	return err
}

func (s *Server) wsUpdateLocation(ctx context.Context, c *Client, msg inbound) error {
	var f locationFrame
	if err := decodePayload(msg.Payload, &f); err != nil {
		return err
	}
	if f.DeviceID == "" {
		return errMissingDeviceID
	}
	_, err := s.devices.ReportLocation(ctx, c.user.ID, f.DeviceID, f.Location)
	return err
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return validation.New("payload", "is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return validation.New("payload", "is malformed")
	}
	return nil
}

// frameError is a protocol failure reported to the client verbatim.
type frameError string

func (e frameError) Error() string { return string(e) }

// sendFrameError reports err to the sender. Unexpected errors are logged
// and reported generically.
func (s *Server) sendFrameError(c *Client, requestID string, err error) {
	message := err.Error()
	var fe frameError
	if !errors.Is(err, validation.ErrInvalid) && !errors.As(err, &fe) {
		if _, text, ok := classify(err); ok {
			message = text
		} else {
			s.logger.Error("websocket frame failed", "user_id", c.userID(), "request_id", requestID, "error", err)
			message = msgInternal
		}
	}
	c.hub.SendTo(c, Message{
		Type:    MsgError,
		ID:      requestID,
		Payload: ErrorPayload{Message: message, RequestID: requestID},
	})
}
