package api

import (
	"github.com/gofiber/fiber/v3"
)

type BuildErrorRequest struct {
	Error string `json:"error" validate:"required"`
}

// HandleBuildError is called by the builder when a generation fails.
func (s *Server) HandleBuildError(c fiber.Ctx) error {
	var req BuildErrorRequest

	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "error payload is required"})
	}

	err := s.engine.Fail(c.Context(), clientID(c), c.Params("id"), req.Error)

	if err != nil {
		return s.renderError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
