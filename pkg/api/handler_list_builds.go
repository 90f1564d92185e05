package api

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) HandleListBuilds(c fiber.Ctx) error {
	builds, err := s.engine.Builds(c.Context(), clientID(c), c.Params("name"))

	if err != nil {
		return s.renderError(c, err)
	}

	services := make([]ServiceResponse, len(builds))

	for i, gen := range builds {
		services[i] = newServiceResponse(gen)
	}

	return c.JSON(services)
}
