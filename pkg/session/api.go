package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

// StatusFor maps a failure code to an HTTP status.
func StatusFor(code protocol.Code) int {
	switch code {
	case protocol.CodeNodeNotFound:
		return fiber.StatusNotFound
	case protocol.CodeNoPathFound, protocol.CodeInvalidEdgeGeometry:
		return fiber.StatusUnprocessableEntity
	case protocol.CodeUncalibratedFrame, protocol.CodeInvalidState, protocol.CodeSensorUnavailable:
		return fiber.StatusConflict
	case protocol.CodeBadRequest:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse writes err as a JSON error body with its failure code.
func ErrorResponse(c *fiber.Ctx, err error) error {
	code := protocol.FailureCode(err)
	return c.Status(StatusFor(code)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

var errSessionNotFound = errors.New("session: not connected")

// RegisterAPIRoutes registers API routes for session management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	sessions := api.Group("/sessions")

	// List connected devices
	sessions.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": h.GetInfos(),
			"count":    h.SessionCount(),
		})
	})

	// Get hub stats
	sessions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	// Engine snapshot of one device
	sessions.Get("/:id", func(c *fiber.Ctx) error {
		s := h.GetSession(c.Params("id"))
		if s == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": errSessionNotFound.Error()})
		}
		return c.JSON(s.Engine.Snapshot())
	})

	// Route a device to a destination
	sessions.Post("/:id/navigate", func(c *fiber.Ctx) error {
		s := h.GetSession(c.Params("id"))
		if s == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": errSessionNotFound.Error()})
		}

		var req protocol.NavigateData
		if err := c.BodyParser(&req); err != nil {
			return ErrorResponse(c, badRequest(err))
		}
		if req.Destination == "" {
			return ErrorResponse(c, badRequest(errors.New("destination is required")))
		}

		r, err := h.navigate(s, req.Destination)
		if err != nil {
			return ErrorResponse(c, err)
		}
		return c.JSON(routeResponse(r))
	})

	// Cancel a device's route
	sessions.Post("/:id/cancel", func(c *fiber.Ctx) error {
		s := h.GetSession(c.Params("id"))
		if s == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": errSessionNotFound.Error()})
		}
		if err := s.Engine.Cancel(); err != nil {
			return ErrorResponse(c, err)
		}
		return c.JSON(fiber.Map{"status": "cancelled", "state": s.Engine.State().String()})
	})
}

func routeResponse(r *navigation.Route) fiber.Map {
	return fiber.Map{
		"generation":      r.Generation,
		"destination":     r.Destination,
		"nodes":           r.Path.Nodes,
		"distance_meters": r.DistanceMeters,
		"waypoints":       protocol.FromWaypoints(r.Waypoints),
	}
}
