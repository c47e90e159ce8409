package main

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
)

func TestParseVec3(t *testing.T) {
	tests := []struct {
		in      string
		want    geom.Vector3
		wantErr bool
	}{
		{in: "1,2,3", want: geom.Vector3{X: 1, Y: 2, Z: 3}},
		{in: " -0.5, 0 ,4", want: geom.Vector3{X: -0.5, Y: 0, Z: 4}},
		{in: "1,2", wantErr: true},
		{in: "a,b,c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseVec3(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVec3() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseVec3() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReferenceScale(t *testing.T) {
	g := graph.Build([]graph.Node{
		{ID: "A", Pos: geom.Pt(0, 0)},
		{ID: "B", Pos: geom.Pt(300, 400)},
	}, nil)

	s, err := referenceScale(g, "A,B,5")
	if err != nil {
		t.Fatalf("referenceScale() error = %v", err)
	}
	if s != 0.01 {
		t.Errorf("scale = %v, want 0.01", s)
	}

	if _, err := referenceScale(g, "A,Z,5"); !errors.Is(err, graph.ErrNodeNotFound) {
		t.Errorf("unknown node error = %v", err)
	}
	if _, err := referenceScale(g, "A,A,5"); !errors.Is(err, frame.ErrInvalidScale) {
		t.Errorf("degenerate reference error = %v", err)
	}
	if _, err := referenceScale(g, "A,B"); err == nil {
		t.Error("missing distance should fail")
	}
}
