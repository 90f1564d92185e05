package api

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) HandleListServices(c fiber.Ctx) error {
	catalog, err := s.engine.Catalog(c.Context(), clientID(c))

	if err != nil {
		return s.renderError(c, err)
	}

	services := make([]ServiceResponse, len(catalog))

	for i, gen := range catalog {
		services[i] = newServiceResponse(gen)
	}

	return c.JSON(services)
}
