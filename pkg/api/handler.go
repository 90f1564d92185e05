package api

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/targc/servio/pkg/engine"
	"github.com/targc/servio/pkg/metrics"
	"github.com/targc/servio/pkg/models"
	"gorm.io/gorm"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	db       *gorm.DB
	engine   *engine.Engine
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	validate *validator.Validate
}

func NewServer(db *gorm.DB, eng *engine.Engine, m *metrics.Metrics, logger zerolog.Logger) *Server {
	return &Server{
		db:       db,
		engine:   eng,
		metrics:  m,
		logger:   logger,
		validate: validator.New(),
	}
}

// ServiceResponse is the catalog and builds row shape: no definition, no
// result.
type ServiceResponse struct {
	ID           string          `json:"id"`
	DatacenterID string          `json:"datacenter_id"`
	Name         string          `json:"name"`
	Version      int64           `json:"version"`
	Status       string          `json:"status"`
	Options      json.RawMessage `json:"options"`
	Endpoint     string          `json:"endpoint"`
}

// ServiceDetailResponse adds the raw definition and the builder result.
type ServiceDetailResponse struct {
	ServiceResponse
	Definition string          `json:"definition,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

func newServiceResponse(g models.Generation) ServiceResponse {
	endpoint := ""

	if g.Endpoint != nil {
		endpoint = *g.Endpoint
	}

	return ServiceResponse{
		ID:           g.GenerationID,
		DatacenterID: g.DatacenterID,
		Name:         g.ServiceName,
		Version:      g.GenerationNumber,
		Status:       g.Status,
		Options:      json.RawMessage(g.Options),
		Endpoint:     endpoint,
	}
}

func newServiceDetailResponse(g models.Generation) ServiceDetailResponse {
	return ServiceDetailResponse{
		ServiceResponse: newServiceResponse(g),
		Definition:      g.Definition,
		Result:          json.RawMessage(g.Result),
	}
}

// renderError maps the engine's failure kinds onto HTTP statuses. Upstream
// rejections keep their body verbatim; internal errors are logged and hidden.
func (s *Server) renderError(c fiber.Ctx, err error) error {
	kind := engine.KindOf(err)

	status := fiber.StatusInternalServerError
	message := err.Error()

	switch kind {
	case engine.KindInvalidRequest, engine.KindMalformedPayload, engine.KindBadUpstreamRequest:
		status = fiber.StatusBadRequest
	case engine.KindUpstreamRejected:
		// the builder's response body is relayed as-is
		status = fiber.StatusBadRequest

		var engErr *engine.Error

		if errors.As(err, &engErr) {
			message = engErr.Message
		}
	case engine.KindUnsupportedMediaType:
		status = fiber.StatusUnsupportedMediaType
	case engine.KindNotFound:
		status = fiber.StatusNotFound
	case engine.KindConflict:
		status = fiber.StatusConflict
	case engine.KindInvalidState:
		status = fiber.StatusUnprocessableEntity
	default:
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		message = "an error occurred"
	}

	return c.Status(status).JSON(ErrorResponse{Error: message})
}
