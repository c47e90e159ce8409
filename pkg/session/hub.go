// Package session provides the WebSocket hub for AR devices. Each connected
// device gets its own navigation engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

// DefaultReadyTimeout bounds how long a new connection waits for the floor plan.
const DefaultReadyTimeout = 10 * time.Second

// Session is a connected device.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Engine    *navigation.Engine
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the device.
func (s *Session) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithReadyTimeout sets how long a connection waits for the floor plan.
func WithReadyTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.readyTimeout = d
	}
}

// Hub manages device sessions.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	store        *floorplan.Store
	cfg          navigation.Config
	logger       *slog.Logger
	readyTimeout time.Duration

	// Callbacks
	onEvent      func(sessionID string, ev navigation.Event)
	onConnect    func(sessionID string)
	onDisconnect func(sessionID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	eventsEmitted    atomic.Uint64
	errorsSent       atomic.Uint64
	routesComputed   atomic.Uint64
}

// NewHub creates a hub serving the plan held by store.
func NewHub(store *floorplan.Store, cfg navigation.Config, opts ...Option) *Hub {
	h := &Hub{
		sessions:     make(map[string]*Session),
		store:        store,
		cfg:          cfg,
		logger:       slog.Default().With("component", "session"),
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnEvent sets the callback for engine events of every session
func (h *Hub) OnEvent(callback func(sessionID string, ev navigation.Event)) {
	h.mu.Lock()
	h.onEvent = callback
	h.mu.Unlock()
}

// OnConnect sets the callback for new sessions
func (h *Hub) OnConnect(callback func(sessionID string)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback for closed sessions
func (h *Hub) OnDisconnect(callback func(sessionID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/session", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/session", websocket.New(h.handleSession))
	app.Get("/ws/session/:id", websocket.New(h.handleSession))
}

// engineConfig merges the plan's marker bindings under the configured ones.
func (h *Hub) engineConfig(plan *floorplan.Plan) navigation.Config {
	cfg := h.cfg
	markers := make(map[string]string, len(plan.Markers)+len(cfg.Markers))
	for k, v := range plan.Markers {
		markers[k] = v
	}
	for k, v := range cfg.Markers {
		markers[k] = v
	}
	cfg.Markers = markers
	if cfg.North == nil && plan.North != nil {
		n := *plan.North
		cfg.North = &n
	}
	return cfg
}

// handleSession runs one device connection. The read loop is the only
// goroutine that feeds this session's engine from the socket.
func (h *Hub) handleSession(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}
	logger := h.logger.With("session", id)

	s := &Session{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.readyTimeout)
	g, plan, err := h.store.Wait(ctx)
	cancel()
	if err != nil {
		logger.Error("floor plan unavailable", "error", err)
		h.sendError(s, "", err)
		return
	}

	s.Engine = navigation.New(g, h.engineConfig(plan),
		navigation.WithLogger(logger),
		navigation.WithEventSink(func(ev navigation.Event) { h.deliver(s, ev) }),
	)

	h.mu.Lock()
	if old, ok := h.sessions[id]; ok {
		logger.Warn("replacing existing session")
		old.Conn.Close()
	}
	h.sessions[id] = s
	count := len(h.sessions)
	connectCb := h.onConnect
	h.mu.Unlock()

	logger.Info("device connected", "total", count)
	if connectCb != nil {
		connectCb(id)
	}

	defer func() {
		h.mu.Lock()
		if h.sessions[id] == s {
			delete(h.sessions, id)
		}
		count := len(h.sessions)
		disconnectCb := h.onDisconnect
		h.mu.Unlock()

		logger.Info("device disconnected", "total", count)
		if disconnectCb != nil {
			disconnectCb(id)
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			logger.Debug("read loop ended", "error", err)
			return
		}
		s.touch()
		h.messagesReceived.Add(1)
		h.handleMessage(s, data)
	}
}

// handleMessage dispatches one device message to the session's engine.
func (h *Hub) handleMessage(s *Session, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.sendError(s, "", badRequest(err))
		return
	}

	if err := h.dispatch(s, msg); err != nil {
		h.sendError(s, msg.Type, err)
	}
}

func (h *Hub) dispatch(s *Session, msg *protocol.Message) error {
	e := s.Engine
	switch msg.Type {
	case protocol.TypeMarker:
		d, err := msg.GetMarkerData()
		if err != nil {
			return badRequest(err)
		}
		return e.HandleMarker(d.Observation())

	case protocol.TypeMotion:
		d, err := msg.GetMotionData()
		if err != nil {
			return badRequest(err)
		}
		return e.HandleMotion(d.Sample())

	case protocol.TypeOrientation:
		d, err := msg.GetOrientationData()
		if err != nil {
			return badRequest(err)
		}
		return e.HandleOrientation(d.Sample())

	case protocol.TypeSensorStatus:
		d, err := msg.GetSensorStatusData()
		if err != nil {
			return badRequest(err)
		}
		e.HandleSensorStatus(d.Available, d.Reason)
		return nil

	case protocol.TypeNavigate:
		d, err := msg.GetNavigateData()
		if err != nil {
			return badRequest(err)
		}
		return reportable(h.navigate(s, d.Destination))

	case protocol.TypeCancel:
		return e.Cancel()

	case protocol.TypePing:
		d, err := msg.GetPingData()
		if err != nil {
			return badRequest(err)
		}
		pingTS := d.Timestamp
		if pingTS == 0 {
			pingTS = msg.Timestamp
		}
		pong, err := protocol.NewPongMessage(d.ID, pingTS, time.Now().UnixMilli())
		if err != nil {
			return err
		}
		return h.send(s, pong)

	default:
		return fmt.Errorf("%w: unknown message type %q", protocol.ErrBadRequest, msg.Type)
	}
}

func (h *Hub) navigate(s *Session, dest string) (*navigation.Route, error) {
	r, err := s.Engine.RequestNavigation(dest)
	if err == nil {
		h.routesComputed.Add(1)
	}
	return r, err
}

// reportable drops errors the engine already reported as path_not_found.
func reportable(_ *navigation.Route, err error) error {
	if err == nil || errors.Is(err, navigation.ErrNotCalibrated) {
		return err
	}
	return nil
}

func badRequest(err error) error {
	if errors.Is(err, protocol.ErrBadRequest) {
		return err
	}
	return fmt.Errorf("%w: %v", protocol.ErrBadRequest, err)
}

// deliver writes an engine event to the device and mirrors it to OnEvent.
func (h *Hub) deliver(s *Session, ev navigation.Event) {
	h.eventsEmitted.Add(1)

	msg, err := protocol.EventMessage(ev)
	if err != nil {
		h.logger.Error("encode event", "session", s.ID, "kind", ev.Kind, "error", err)
	} else if err := h.send(s, msg); err != nil {
		h.logger.Debug("send event", "session", s.ID, "kind", ev.Kind, "error", err)
	}

	h.mu.RLock()
	cb := h.onEvent
	h.mu.RUnlock()
	if cb != nil {
		cb(s.ID, ev)
	}
}

func (h *Hub) send(s *Session, msg *protocol.Message) error {
	h.messagesSent.Add(1)
	return s.Send(msg)
}

func (h *Hub) sendError(s *Session, req protocol.MessageType, err error) {
	f := protocol.NewFailure(req, err)
	h.logger.Warn("request rejected", "session", s.ID, "request", req, "code", f.Code, "error", err)
	msg, merr := f.Message()
	if merr != nil {
		return
	}
	h.errorsSent.Add(1)
	if serr := h.send(s, msg); serr != nil {
		h.logger.Debug("send error", "session", s.ID, "error", serr)
	}
}

// GetSession returns a session by ID
func (h *Hub) GetSession(id string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[id]
}

// SessionCount returns the number of connected devices
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Stats contains hub statistics
type Stats struct {
	SessionCount     int    `json:"session_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	EventsEmitted    uint64 `json:"events_emitted"`
	ErrorsSent       uint64 `json:"errors_sent"`
	RoutesComputed   uint64 `json:"routes_computed"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		SessionCount:     h.SessionCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		EventsEmitted:    h.eventsEmitted.Load(),
		ErrorsSent:       h.errorsSent.Load(),
		RoutesComputed:   h.routesComputed.Load(),
	}
}

// Info contains info about a connected device
type Info struct {
	ID          string    `json:"id"`
	Connected   time.Time `json:"connected"`
	LastSeen    time.Time `json:"last_seen"`
	State       string    `json:"state"`
	Generation  uint64    `json:"generation"`
	Destination string    `json:"destination,omitempty"`
}

func (s *Session) info() Info {
	snap := s.Engine.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:          s.ID,
		Connected:   s.Connected,
		LastSeen:    s.LastSeen,
		State:       snap.State.String(),
		Generation:  snap.Generation,
		Destination: snap.Destination,
	}
}

// GetInfos returns info about all connected devices, ordered by ID
func (h *Hub) GetInfos() []Info {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
