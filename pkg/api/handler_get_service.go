package api

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) HandleGetService(c fiber.Ctx) error {
	gen, err := s.engine.GetByName(c.Context(), clientID(c), c.Params("name"))

	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(newServiceDetailResponse(*gen))
}
