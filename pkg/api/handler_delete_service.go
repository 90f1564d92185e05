package api

import (
	"github.com/gofiber/fiber/v3"
)

type DeleteServiceResponse struct {
	ID       string `json:"id"`
	StreamID string `json:"stream_id"`
}

func (s *Server) HandleDeleteService(c fiber.Ctx) error {
	id, stream, err := s.engine.Delete(c.Context(), clientID(c), c.Params("name"))

	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(DeleteServiceResponse{ID: id, StreamID: stream})
}
