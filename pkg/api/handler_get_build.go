package api

import (
	"github.com/gofiber/fiber/v3"
)

func (s *Server) HandleGetBuild(c fiber.Ctx) error {
	gen, err := s.engine.Build(c.Context(), clientID(c), c.Params("name"), c.Params("build"))

	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(newServiceDetailResponse(*gen))
}
