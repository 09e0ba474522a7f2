package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-holocam/pkg/pipeline"
)

// handleHealth reports 200 while the pipeline is starting or running.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	src := s.getSource()
	if src == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "starting"})
	}

	state := src.State()
	switch state {
	case pipeline.StateInit, pipeline.StateRunning:
		return c.JSON(fiber.Map{"status": "ok", "state": state.String()})
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "state": state.String()})
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	src := s.getSource()
	if src == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "pipeline not started")
	}
	return c.JSON(src.Stats())
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	src := s.getSource()
	if src == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "pipeline not started")
	}
	return c.JSON(src.Config())
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	jpeg := s.preview.Load()
	if jpeg == nil {
		return fiber.NewError(fiber.StatusNotFound, "no preview yet")
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(*jpeg)
}
