// navroute: plan a route on a floor plan from the command line
// Prints the node path, its length and the sampled waypoints
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/teslashibe/go-arnav/internal/log"
	"github.com/teslashibe/go-arnav/pkg/floorplan"
	"github.com/teslashibe/go-arnav/pkg/frame"
	"github.com/teslashibe/go-arnav/pkg/geom"
	"github.com/teslashibe/go-arnav/pkg/graph"
	"github.com/teslashibe/go-arnav/pkg/protocol"
	"github.com/teslashibe/go-arnav/pkg/sampler"
)

var (
	planPath = flag.String("floorplan", "floorplan.svg", "Floor plan .svg or .json")
	from     = flag.String("from", "", "Start node id")
	to       = flag.String("to", "", "Destination node id")
	spacing  = flag.Float64("spacing", 1.0, "Waypoint spacing in meters")
	scale    = flag.Float64("scale", frame.DefaultMapUnitsToMeters, "Meters per map unit")
	scaleRef = flag.String("scale-ref", "", "Derive the scale from two nodes a known distance apart: A,B,meters")
	origin   = flag.String("origin", "", "World position x,y,z of the start node; prints world coordinates")
	rotation = flag.Float64("rotation", 0, "Rotation offset in degrees used with -origin")
	flipY    = flag.Bool("flip-y", false, "Flip the SVG y axis")
	asJSON   = flag.Bool("json", false, "Print waypoints as JSON")
	logLevel = flag.String("log-level", "warn", "debug, info, warn or error")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "Usage: navroute -floorplan plan.svg -from A -to B [-spacing 1] [-origin x,y,z]")
		os.Exit(2)
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "navroute:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := log.Component("navroute")
	src := floorplan.FileSource{Path: *planPath, SVG: floorplan.SVGOptions{FlipY: *flipY, Logger: logger}}
	plan, err := src.Load(context.Background())
	if err != nil {
		return err
	}
	g := plan.Graph(graph.WithLogger(logger))
	if n := g.Dropped(); n > 0 {
		logger.Warn("floor plan has malformed elements", "dropped", n)
	}

	if *scaleRef != "" {
		s, err := referenceScale(g, *scaleRef)
		if err != nil {
			return err
		}
		*scale = s
		fmt.Printf("Scale:    %.5f m per map unit\n", s)
	}

	path, err := graph.Dijkstra(g, *from, *to)
	if err != nil {
		return err
	}
	wps, err := sampler.Resample(path, g, *spacing, *scale)
	if err != nil {
		return err
	}

	if *origin != "" {
		world, err := parseVec3(*origin)
		if err != nil {
			return err
		}
		start, _ := g.Node(*from)
		f := frame.New(*scale, frame.PolicyReanchor)
		f.Calibrate("cli", start.Pos, world, *rotation)
		if wps, err = sampler.Project(wps, f.ToWorld); err != nil {
			return err
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Nodes          []string                `json:"nodes"`
			DistanceMeters float64                 `json:"distance_meters"`
			Waypoints      []protocol.WaypointData `json:"waypoints"`
		}{path.Nodes, sampler.Length(path, *scale), protocol.FromWaypoints(wps)})
	}

	fmt.Printf("Path:     %s\n", strings.Join(path.Nodes, " → "))
	fmt.Printf("Distance: %.2f m (%.1f map units)\n", sampler.Length(path, *scale), path.Distance)
	fmt.Printf("Waypoints (%d every %.2f m):\n", len(wps), *spacing)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if *origin != "" {
		fmt.Fprintln(w, "#\tdist m\tmap x\tmap y\tworld x\tworld y\tworld z\tbearing")
	} else {
		fmt.Fprintln(w, "#\tdist m\tmap x\tmap y\tbearing")
	}
	for _, wp := range wps {
		if *origin != "" {
			fmt.Fprintf(w, "%d\t%.2f\t%.1f\t%.1f\t%.3f\t%.3f\t%.3f\t%.0f°\n",
				wp.Index, wp.DistanceAlongPath, wp.MapPosition.X(), wp.MapPosition.Y(),
				wp.WorldPosition.X, wp.WorldPosition.Y, wp.WorldPosition.Z, wp.CompassBearing())
		} else {
			fmt.Fprintf(w, "%d\t%.2f\t%.1f\t%.1f\t%.0f°\n",
				wp.Index, wp.DistanceAlongPath, wp.MapPosition.X(), wp.MapPosition.Y(), wp.CompassBearing())
		}
	}
	return w.Flush()
}

func parseVec3(s string) (geom.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vector3{}, fmt.Errorf("origin %q: want x,y,z", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vector3{}, fmt.Errorf("origin %q: %w", s, err)
		}
		v[i] = f
	}
	return geom.Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// referenceScale parses "A,B,meters" and measures A-B on the plan.
func referenceScale(g *graph.Graph, ref string) (float64, error) {
	parts := strings.Split(ref, ",")
	if len(parts) != 3 {
		return 0, fmt.Errorf("scale-ref %q: want A,B,meters", ref)
	}
	a, ok := g.Node(strings.TrimSpace(parts[0]))
	if !ok {
		return 0, fmt.Errorf("scale-ref: %w: %s", graph.ErrNodeNotFound, parts[0])
	}
	b, ok := g.Node(strings.TrimSpace(parts[1]))
	if !ok {
		return 0, fmt.Errorf("scale-ref: %w: %s", graph.ErrNodeNotFound, parts[1])
	}
	meters, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return 0, fmt.Errorf("scale-ref %q: %w", ref, err)
	}
	return frame.ScaleFromReference(a.Pos, b.Pos, meters)
}
