package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/targc/servio/pkg/engine"
)

type ServiceUUIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type ServiceUUIDResponse struct {
	UUID string `json:"uuid"`
}

// HandleServiceUUID derives the builder-side correlation hash for an
// identifier. Kept for builder compatibility.
func (s *Server) HandleServiceUUID(c fiber.Ctx) error {
	var req ServiceUUIDRequest

	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id is required"})
	}

	return c.JSON(ServiceUUIDResponse{UUID: engine.Digest(req.ID)})
}
