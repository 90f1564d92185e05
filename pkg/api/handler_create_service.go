package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/targc/servio/pkg/engine"
)

type CreateServiceResponse struct {
	ID string `json:"id"`
}

func (s *Server) HandleCreateService(c fiber.Ctx) error {
	in := engine.CreateInput{
		ClientID:    clientID(c),
		Token:       authToken(c),
		Body:        append([]byte(nil), c.Body()...),
		ContentType: c.Get("Content-Type"),
	}

	id, err := s.engine.Create(c.Context(), in)

	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(CreateServiceResponse{ID: id})
}
