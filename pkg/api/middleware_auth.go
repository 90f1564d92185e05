package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/targc/servio/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

func (s *Server) AuthMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token := c.Get("X-AUTH-TOKEN")
		clientID := c.Get("X-CLIENT-ID")

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "missing auth token"})
		}

		if clientID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "missing client id"})
		}

		var keys []models.ClientAPIKey

		err := s.db.
			WithContext(c.Context()).
			Where("client_id = ? AND deleted_at IS NULL", clientID).
			Find(&keys).
			Error

		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
		}

		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(token)) == nil {
				c.Locals("client_id", clientID)
				c.Locals("token", token)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid auth token"})
	}
}

func clientID(c fiber.Ctx) string {
	id, _ := c.Locals("client_id").(string)
	return id
}

func authToken(c fiber.Ctx) string {
	token, _ := c.Locals("token").(string)
	return token
}
