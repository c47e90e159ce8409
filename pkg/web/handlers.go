package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-arnav/pkg/graph"
	"github.com/teslashibe/go-arnav/pkg/protocol"
	"github.com/teslashibe/go-arnav/pkg/sampler"
	"github.com/teslashibe/go-arnav/pkg/session"
)

// handleHealth reports liveness and floor-plan readiness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "loading"
	ready := false
	select {
	case <-s.store.Ready():
		if _, _, ok := s.store.Current(); ok {
			status, ready = "ok", true
		} else {
			status = "error"
		}
	default:
	}

	code := fiber.StatusOK
	if status == "error" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":          status,
		"floorplan_ready": ready,
		"sessions":        s.sessions.SessionCount(),
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
	})
}

// handleStatus returns session and dashboard statistics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sessions":          s.sessions.GetStats(),
		"dashboard_clients": s.statusHub.ClientCount(),
		"dropped_updates":   s.statusHub.Dropped(),
	})
}

// handleFloorplan returns the loaded plan in its JSON form
func (s *Server) handleFloorplan(c *fiber.Ctx) error {
	_, plan, ok := s.store.Current()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "floor plan not loaded",
		})
	}
	return c.JSON(plan.Document())
}

// RouteWaypoint is one waypoint of a map-space route
type RouteWaypoint struct {
	Index             int            `json:"index"`
	Map               protocol.Point `json:"map"`
	DistanceAlongPath float64        `json:"distance_along_path"`
	HeadingDegrees    float64        `json:"heading_degrees"`
	CompassBearing    float64        `json:"compass_bearing"`
	EdgeID            string         `json:"edge_id"`
}

// RouteResponse is the map-space route used by the 2D overview
type RouteResponse struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	Nodes          []string        `json:"nodes"`
	DistanceMeters float64         `json:"distance_meters"`
	SpacingMeters  float64         `json:"spacing_meters"`
	Waypoints      []RouteWaypoint `json:"waypoints"`
}

// handleRoute plans a route between two nodes without a device
func (s *Server) handleRoute(c *fiber.Ctx) error {
	g, _, ok := s.store.Current()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "floor plan not loaded",
		})
	}

	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		return session.ErrorResponse(c, fmt.Errorf("%w: from and to are required", protocol.ErrBadRequest))
	}
	spacing := c.QueryFloat("spacing", s.cfg.SpacingMeters)

	resp, err := s.route(g, from, to, spacing)
	if err != nil {
		return session.ErrorResponse(c, err)
	}
	return c.JSON(resp)
}

func (s *Server) route(g *graph.Graph, from, to string, spacing float64) (*RouteResponse, error) {
	path, err := graph.Dijkstra(g, from, to)
	if err != nil {
		return nil, err
	}
	wps, err := sampler.Resample(path, g, spacing, s.cfg.MapUnitsToMeters)
	if err != nil {
		if errors.Is(err, sampler.ErrInvalidSpacing) {
			return nil, fmt.Errorf("%w: %v", protocol.ErrBadRequest, err)
		}
		return nil, err
	}

	resp := &RouteResponse{
		From:           from,
		To:             to,
		Nodes:          path.Nodes,
		DistanceMeters: sampler.Length(path, s.cfg.MapUnitsToMeters),
		SpacingMeters:  spacing,
		Waypoints:      make([]RouteWaypoint, len(wps)),
	}
	for i, w := range wps {
		resp.Waypoints[i] = RouteWaypoint{
			Index:             w.Index,
			Map:               protocol.FromPoint(w.MapPosition),
			DistanceAlongPath: w.DistanceAlongPath,
			HeadingDegrees:    w.HeadingDegrees,
			CompassBearing:    w.CompassBearing(),
			EdgeID:            w.EdgeID,
		}
	}
	return resp, nil
}
