package api

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) HandleResetService(c fiber.Ctx) error {
	err := s.engine.Reset(c.Context(), clientID(c), c.Params("name"))

	if err != nil {
		return s.renderError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
