// navreplay: replay a recorded device trace against a navigation server
// Each trace line is one protocol message; server events are printed as they arrive
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-arnav/internal/httpc"
	"github.com/teslashibe/go-arnav/internal/log"
	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

var (
	serverURL = flag.String("url", "http://localhost:8080", "Navigation server base URL")
	tracePath = flag.String("trace", "", "JSON-lines trace of device messages")
	sessionID = flag.String("session", "", "Session id (server generates one if empty)")
	speed     = flag.Float64("speed", 1.0, "Replay speed factor for traces with timestamps")
	delay     = flag.Duration("delay", 50*time.Millisecond, "Gap between messages without timestamps")
	linger    = flag.Duration("linger", 2*time.Second, "How long to keep reading after the last message")
	logLevel  = flag.String("log-level", "info", "debug, info, warn or error")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	if *tracePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: navreplay -url http://localhost:8080 -trace walk.jsonl")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "navreplay:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := log.Component("navreplay")

	trace, err := readTrace(*tracePath)
	if err != nil {
		return err
	}

	var doc floorplan.Document
	if err := httpc.GetJSON(ctx, strings.TrimRight(*serverURL, "/")+"/api/floorplan", &doc); err != nil {
		return fmt.Errorf("fetch floor plan: %w", err)
	}
	for _, id := range unknownMarkers(trace, doc) {
		logger.Warn("trace scans a marker the floor plan does not bind", "marker", id)
	}

	wsURL, err := sessionURL(*serverURL, *sessionID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	logger.Info("connected", "url", wsURL, "messages", len(trace))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			printEvent(data)
		}
	}()

	var prevTS int64
	for i, msg := range trace {
		if i > 0 {
			wait := *delay
			if msg.Timestamp > 0 && prevTS > 0 && *speed > 0 {
				wait = time.Duration(float64(msg.Timestamp-prevTS)/(*speed)) * time.Millisecond
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		prevTS = msg.Timestamp

		data, err := msg.Bytes()
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("send message %d: %w", i+1, err)
		}
		logger.Debug("sent", "type", msg.Type, "line", i+1)
	}

	select {
	case <-time.After(*linger):
	case <-done:
	case <-ctx.Done():
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// readTrace parses one protocol message per non-empty line.
func readTrace(path string) ([]*protocol.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var msgs []*protocol.Message
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		msg, err := protocol.ParseMessage([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, sc.Err()
}

// unknownMarkers lists scanned marker ids that are neither bound nor node ids.
func unknownMarkers(trace []*protocol.Message, doc floorplan.Document) []string {
	known := make(map[string]bool, len(doc.Nodes)+len(doc.Markers))
	for _, n := range doc.Nodes {
		known[n.ID] = true
	}
	for m := range doc.Markers {
		known[m] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, msg := range trace {
		if msg.Type != protocol.TypeMarker {
			continue
		}
		d, err := msg.GetMarkerData()
		if err != nil || known[d.MarkerID] || d.MapPosition != nil || seen[d.MarkerID] {
			continue
		}
		seen[d.MarkerID] = true
		out = append(out, d.MarkerID)
	}
	return out
}

// sessionURL turns the server's base URL into its session websocket URL.
func sessionURL(base, id string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/session"
	if id != "" {
		u.Path += "/" + id
	}
	return u.String(), nil
}

func printEvent(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		fmt.Printf("?? %s\n", data)
		return
	}
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05.000")
	switch msg.Type {
	case protocol.TypeWaypoints:
		if d, err := msg.GetWaypointsData(); err == nil {
			fmt.Printf("%s  waypoints  gen=%d count=%d\n", ts, d.Generation, len(d.Waypoints))
			return
		}
	case protocol.TypeError:
		if d, err := msg.GetErrorData(); err == nil {
			fmt.Printf("%s  error      %s %s\n", ts, d.Code, d.Message)
			return
		}
	}
	fmt.Printf("%s  %-10s %s\n", ts, msg.Type, msg.Data)
}
