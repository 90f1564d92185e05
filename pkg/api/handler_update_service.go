package api

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) HandleUpdateService(c fiber.Ctx) error {
	err := s.engine.Update(c.Context(), clientID(c), c.Params("id"), append([]byte(nil), c.Body()...))

	if err != nil {
		return s.renderError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
