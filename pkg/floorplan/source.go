package floorplan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Source produces a floor plan.
type Source interface {
	Load(ctx context.Context) (*Plan, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Plan, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (*Plan, error) {
	return f(ctx)
}

// Static returns a Source that always yields p.
func Static(p *Plan) Source {
	return SourceFunc(func(context.Context) (*Plan, error) { return p, nil })
}

// ParseJSON reads a Document. Marker presets bind the first nodes unless the
// document names them explicitly.
func ParseJSON(r io.Reader, presets []string) (*Plan, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if presets == nil {
		presets = DefaultMarkerPresets
	}
	p := doc.Plan()
	p.bindPresets(presets)
	return p, nil
}

// FileSource loads a plan from disk, choosing the parser by extension.
type FileSource struct {
	Path string
	SVG  SVGOptions
}

// Load reads and parses the file.
func (s FileSource) Load(ctx context.Context) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("floorplan: open %s: %w", s.Path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".svg":
		return ParseSVG(f, s.SVG)
	case ".json":
		return ParseJSON(f, s.SVG.MarkerPresets)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s.Path)
	}
}
