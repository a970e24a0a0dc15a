package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/pkg/health"
	"github.com/xenking/kart-pricing/pkg/httpmiddleware"
)

// RouterConfig holds non-dependency router settings.
type RouterConfig struct {
	// MaxInFlight caps concurrent /api requests; zero disables the limit.
	MaxInFlight int
}

// NewRouter mounts the health probes and the API on one chi router.
func NewRouter(cfg RouterConfig, lg *zap.Logger, h *Handler, hs *health.Health) chi.Router {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.Labeler(),
		httpmiddleware.LogRequests(),
	)
	r.NotFound(notFoundJSON)
	r.MethodNotAllowed(methodNotAllowedJSON)

	r.Get("/livez", hs.LiveEndpoint)
	r.Get("/readyz", hs.ReadyEndpoint)

	r.Route("/api", func(r chi.Router) {
		if cfg.MaxInFlight > 0 {
			r.Use(middleware.Throttle(cfg.MaxInFlight))
		}
		r.Use(middleware.AllowContentType("application/json"))
		h.Routes(r)
	})
	return r
}
