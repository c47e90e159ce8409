package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

func TestSessionURL(t *testing.T) {
	tests := []struct {
		base    string
		id      string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/ws/session"},
		{base: "https://nav.example.com/", id: "phone 1", want: "wss://nav.example.com/ws/session/phone%201"},
		{base: "ws://host:1/prefix", id: "a", want: "ws://host:1/prefix/ws/session/a"},
		{base: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := sessionURL(tt.base, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sessionURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("sessionURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadTraceAndMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.jsonl")
	trace := `# lobby to lab
{"type":"marker","data":{"marker_id":"hiro","world_pose":{"position":{"x":0,"y":0,"z":0}}}}

{"type":"navigate","data":{"destination":"lab"}}
{"type":"marker","data":{"marker_id":"ghost","world_pose":{"position":{"x":0,"y":0,"z":0}}}}
{"type":"marker","data":{"marker_id":"ghost","world_pose":{"position":{"x":1,"y":0,"z":0}}}}
{"type":"marker","data":{"marker_id":"lab","world_pose":{"position":{"x":0,"y":0,"z":0}}}}
`
	if err := os.WriteFile(path, []byte(trace), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := readTrace(path)
	if err != nil {
		t.Fatalf("readTrace() error = %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("messages = %d, want 5", len(msgs))
	}
	if msgs[1].Type != protocol.TypeNavigate {
		t.Errorf("second message = %s, want navigate", msgs[1].Type)
	}

	doc := floorplan.Document{
		Nodes:   []floorplan.DocumentNode{{ID: "lobby"}, {ID: "lab"}},
		Markers: map[string]string{"hiro": "lobby"},
	}
	unknown := unknownMarkers(msgs, doc)
	if len(unknown) != 1 || unknown[0] != "ghost" {
		t.Errorf("unknownMarkers() = %v, want [ghost]", unknown)
	}
}

func TestReadTraceBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"data\":{}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readTrace(path); err == nil {
		t.Error("readTrace() should reject a message without a type")
	}
}
