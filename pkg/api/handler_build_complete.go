package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
)

type BuildCompleteRequest struct {
	Result   json.RawMessage `json:"result" validate:"required"`
	Endpoint string          `json:"endpoint"`
}

// HandleBuildComplete is called by the builder when a generation finishes
// successfully.
func (s *Server) HandleBuildComplete(c fiber.Ctx) error {
	var req BuildCompleteRequest

	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := s.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "result is required"})
	}

	err := s.engine.Complete(c.Context(), clientID(c), c.Params("id"), req.Result, req.Endpoint)

	if err != nil {
		return s.renderError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
