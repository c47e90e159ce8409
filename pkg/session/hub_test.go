package session

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

// corridor is a straight 20 m hallway at 1 unit = 1 cm.
func corridor() *floorplan.Plan {
	return &floorplan.Plan{
		Nodes: []graph.Node{
			{ID: "A", Pos: geom.Pt(0, 0)},
			{ID: "B", Pos: geom.Pt(1000, 0)},
			{ID: "C", Pos: geom.Pt(2000, 0)},
		},
		Edges: []graph.Edge{
			{ID: "ab", From: "A", To: "B"},
			{ID: "bc", From: "B", To: "C"},
		},
		Markers: map[string]string{"hiro": "A"},
	}
}

func readyStore() *floorplan.Store {
	store := floorplan.NewStore()
	store.Set(corridor())
	return store
}

func startServer(t *testing.T, hub *Hub, addr string) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	go app.Listen(addr)
	time.Sleep(100 * time.Millisecond)
	return app
}

func send(t *testing.T, ws *websocket.Conn, msg *protocol.Message, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads messages until one of type want arrives.
func readUntil(t *testing.T, ws *websocket.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(readyStore(), navigation.DefaultConfig())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.SessionCount() != 0 {
		t.Error("SessionCount should be 0 initially")
	}
	if hub.GetSession("nonexistent") != nil {
		t.Error("GetSession should return nil for unknown session")
	}
	if len(hub.GetInfos()) != 0 {
		t.Error("GetInfos should return empty slice initially")
	}

	stats := hub.GetStats()
	if stats.MessagesReceived != 0 || stats.MessagesSent != 0 || stats.EventsEmitted != 0 {
		t.Errorf("stats should start at zero: %+v", stats)
	}
}

func TestEngineConfigMarkers(t *testing.T) {
	cfg := navigation.DefaultConfig()
	cfg.Markers = map[string]string{"kanji": "C", "hiro": "B"}
	hub := NewHub(readyStore(), cfg)

	got := hub.engineConfig(corridor())
	if got.Markers["hiro"] != "B" {
		t.Errorf("configured binding should win, got %q", got.Markers["hiro"])
	}
	if got.Markers["kanji"] != "C" {
		t.Errorf("kanji = %q, want C", got.Markers["kanji"])
	}
	if cfg.Markers["hiro"] != "B" || len(cfg.Markers) != 2 {
		t.Error("engineConfig must not modify the hub's config")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	hub := NewHub(readyStore(), navigation.DefaultConfig())

	var events atomic.Int64
	hub.OnEvent(func(sessionID string, ev navigation.Event) {
		if sessionID == "device-1" {
			events.Add(1)
		}
	})

	app := startServer(t, hub, ":18180")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18180/ws/session/device-1", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	// Navigating before a scan is rejected.
	msg, err := protocol.NewNavigateMessage("C")
	send(t, ws, msg, err)
	errMsg := readUntil(t, ws, protocol.TypeError)
	data, err := errMsg.GetErrorData()
	if err != nil {
		t.Fatalf("GetErrorData: %v", err)
	}
	if data.Code != protocol.CodeUncalibratedFrame {
		t.Errorf("code = %s, want %s", data.Code, protocol.CodeUncalibratedFrame)
	}

	msg, err = protocol.NewMarkerMessage("hiro", protocol.Vec3{}, nil)
	send(t, ws, msg, err)
	cal := readUntil(t, ws, protocol.TypeCalibration)
	var calData protocol.CalibrationData
	if err := cal.ParseData(&calData); err != nil {
		t.Fatalf("calibration: %v", err)
	}
	if !calData.Valid || calData.MarkerID != "hiro" {
		t.Errorf("calibration = %+v", calData)
	}
	state := readUntil(t, ws, protocol.TypeState)
	if sd, _ := state.GetStateData(); sd == nil || sd.State != "calibrated" {
		t.Errorf("state = %+v, want calibrated", sd)
	}

	msg, err = protocol.NewNavigateMessage("C")
	send(t, ws, msg, err)
	path := readUntil(t, ws, protocol.TypePath)
	pd, err := path.GetPathData()
	if err != nil {
		t.Fatalf("GetPathData: %v", err)
	}
	if strings.Join(pd.Nodes, ",") != "A,B,C" {
		t.Errorf("path = %v, want A,B,C", pd.Nodes)
	}
	if pd.DistanceMeters != 20 {
		t.Errorf("distance = %v, want 20", pd.DistanceMeters)
	}

	wps := readUntil(t, ws, protocol.TypeWaypoints)
	wd, err := wps.GetWaypointsData()
	if err != nil {
		t.Fatalf("GetWaypointsData: %v", err)
	}
	if len(wd.Waypoints) != 19 {
		t.Fatalf("waypoints = %d, want 19", len(wd.Waypoints))
	}
	if wd.Waypoints[0].World.X != 1 || wd.Waypoints[18].World.X != 19 {
		t.Errorf("world X range = %v..%v, want 1..19", wd.Waypoints[0].World.X, wd.Waypoints[18].World.X)
	}
	if wd.Generation != pd.Generation {
		t.Errorf("generation mismatch: %d vs %d", wd.Generation, pd.Generation)
	}

	// Unknown destination withdraws the route.
	msg, err = protocol.NewNavigateMessage("Z")
	send(t, ws, msg, err)
	nf := readUntil(t, ws, protocol.TypePathNotFound)
	var nfd protocol.PathNotFoundData
	if err := nf.ParseData(&nfd); err != nil {
		t.Fatalf("path_not_found: %v", err)
	}
	if nfd.Code != protocol.CodeNodeNotFound {
		t.Errorf("code = %s, want %s", nfd.Code, protocol.CodeNodeNotFound)
	}
	if nfd.Generation <= pd.Generation {
		t.Errorf("generation %d should advance past %d", nfd.Generation, pd.Generation)
	}

	s := hub.GetSession("device-1")
	if s == nil {
		t.Fatal("GetSession should return the connected device")
	}
	if s.Engine.State() != navigation.StateCalibrated {
		t.Errorf("state = %s, want calibrated", s.Engine.State())
	}
	if s.Engine.Route() != nil {
		t.Error("route should be withdrawn after a failed request")
	}
	if events.Load() == 0 {
		t.Error("OnEvent should have been called")
	}

	stats := hub.GetStats()
	if stats.SessionCount != 1 || stats.RoutesComputed != 1 || stats.ErrorsSent < 1 {
		t.Errorf("stats = %+v", stats)
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)
	if hub.SessionCount() != 0 {
		t.Errorf("SessionCount = %d, want 0 after disconnect", hub.SessionCount())
	}
}

func TestPingPong(t *testing.T) {
	hub := NewHub(readyStore(), navigation.DefaultConfig())
	app := startServer(t, hub, ":18181")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18181/ws/session", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg, err := protocol.NewPingMessage("p1", time.Now().UnixMilli())
	send(t, ws, msg, err)
	pong := readUntil(t, ws, protocol.TypePong)
	data, err := pong.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData: %v", err)
	}
	if data.ID != "p1" {
		t.Errorf("pong id = %q, want p1", data.ID)
	}

	// Generated session ids are UUIDs.
	infos := hub.GetInfos()
	if len(infos) != 1 || len(infos[0].ID) != 36 {
		t.Errorf("infos = %+v", infos)
	}
}

func TestBadRequests(t *testing.T) {
	hub := NewHub(readyStore(), navigation.DefaultConfig())
	app := startServer(t, hub, ":18182")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18182/ws/session/bad", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	tests := []struct {
		name    string
		payload string
		want    protocol.Code
	}{
		{"not json", `nope`, protocol.CodeBadRequest},
		{"unknown type", `{"type":"teleport"}`, protocol.CodeBadRequest},
		{"marker without id", `{"type":"marker","data":{}}`, protocol.CodeBadRequest},
		{"unknown marker", `{"type":"marker","data":{"marker_id":"nobody","world_pose":{"position":{"x":0,"y":0,"z":0}}}}`, protocol.CodeNodeNotFound},
		{"cancel without route", `{"type":"cancel"}`, protocol.CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.payload)); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readUntil(t, ws, protocol.TypeError)
			data, err := msg.GetErrorData()
			if err != nil {
				t.Fatalf("GetErrorData: %v", err)
			}
			if data.Code != tt.want {
				t.Errorf("code = %s, want %s (%s)", data.Code, tt.want, data.Message)
			}
		})
	}
}

func TestStoreNotReady(t *testing.T) {
	hub := NewHub(floorplan.NewStore(), navigation.DefaultConfig(), WithReadyTimeout(50*time.Millisecond))
	app := startServer(t, hub, ":18183")
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18183/ws/session/early", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg := readUntil(t, ws, protocol.TypeError)
	if _, err := msg.GetErrorData(); err != nil {
		t.Fatalf("GetErrorData: %v", err)
	}
	if hub.SessionCount() != 0 {
		t.Error("a session without a floor plan should not be registered")
	}
}

func TestAPIRoutes(t *testing.T) {
	hub := NewHub(readyStore(), navigation.DefaultConfig())
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		want     int
		contains string
	}{
		{"list", "GET", "/api/sessions/", "", 200, "sessions"},
		{"stats", "GET", "/api/sessions/stats", "", 200, "session_count"},
		{"unknown snapshot", "GET", "/api/sessions/ghost", "", 404, "not connected"},
		{"unknown navigate", "POST", "/api/sessions/ghost/navigate", `{"destination":"C"}`, 404, "not connected"},
		{"unknown cancel", "POST", "/api/sessions/ghost/cancel", "", 404, "not connected"},
		{"plain http upgrade", "GET", "/ws/session", "", fiber.StatusUpgradeRequired, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Request error: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("Status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.contains != "" {
				data, _ := io.ReadAll(resp.Body)
				if !strings.Contains(string(data), tt.contains) {
					t.Errorf("body %q should contain %q", data, tt.contains)
				}
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code protocol.Code
		want int
	}{
		{protocol.CodeNodeNotFound, 404},
		{protocol.CodeNoPathFound, 422},
		{protocol.CodeUncalibratedFrame, 409},
		{protocol.CodeInvalidState, 409},
		{protocol.CodeBadRequest, 400},
		{protocol.CodeInternal, 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := StatusFor(tt.code); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
