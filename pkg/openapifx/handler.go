package openapifx

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/swaggo/swag"
	"go.uber.org/zap"
)

type Config struct {
	Enabled bool

	// PublicHost and PublicPath override the generated spec's host and base
	// path when the API sits behind a proxy.
	PublicHost string
	PublicPath string
}

// Handler serves the OpenAPI document and the Swagger UI.
type Handler struct {
	config Config

	logger *zap.Logger
}

func New(config Config, spec *swag.Spec, logger *zap.Logger) *Handler {
	if config.PublicHost != "" {
		spec.Host = config.PublicHost
	}
	if config.PublicPath != "" {
		spec.BasePath = config.PublicPath
	}

	return &Handler{
		config: config,
		logger: logger,
	}
}

func (h *Handler) Register(r fiber.Router) {
	if !h.config.Enabled {
		return
	}

	h.logger.Info("serving OpenAPI documentation")
	r.Get("/*", swagger.HandlerDefault)
}
