package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/targc/servio/pkg/store"
)

func (s *Server) HandleSearchServices(c fiber.Ctx) error {
	filters := store.SearchFilters{
		Name:         c.Query("name"),
		DatacenterID: c.Query("datacenter"),
	}

	gen, err := s.engine.Search(c.Context(), clientID(c), filters)

	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(newServiceDetailResponse(*gen))
}
