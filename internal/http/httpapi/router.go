package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"facestudio/internal/http/handlers"
	"facestudio/internal/infra"
	"facestudio/internal/middleware"
)

// RouterOptions carries the cross-cutting settings applied by NewRouter.
type RouterOptions struct {
	Logger          infra.Logger
	JWTSecret       string
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/v1/faces/analyze", app.AnalyzeFace)
			r.Post("/v1/photos", app.CreatePhotos)
		})
		r.Route("/v1/photos/batches/{batch_id}", func(r chi.Router) {
			r.Get("/", app.PhotoBatch)
			r.Delete("/", app.CancelPhotoBatch)
		})

		r.Route("/v1/admin/coze-config", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))
			r.Put("/", app.UpdateCozeConfig)
			r.Post("/invalidate", app.InvalidateCozeConfig)
		})
	})

	return r
}
