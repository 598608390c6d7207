package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packagebuilder-backend/api/controllers"
	"github.com/angelmondragon/packagebuilder-backend/api/controllers/configurations"
	"github.com/angelmondragon/packagebuilder-backend/api/middleware"
	"github.com/angelmondragon/packagebuilder-backend/internal/catalog"
	"github.com/angelmondragon/packagebuilder-backend/pkg/config"
	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/packagebuilder-backend/pkg/redis"
)

// Deps groups what the HTTP surface is built from. Pingers left nil are not
// checked by the readiness probe; a nil Gatherer disables /metrics.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Catalog     catalog.Loader
	Pricing     controllers.PricingTables
	Sessions    configurations.SessionStore
	Gatherer    prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.Redis,
		}))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/packages/{packageId}", controllers.GetPackage(d.Catalog, logg))
		r.Get("/pricing/options", controllers.PricingOptions(d.Pricing))

		r.Route("/configurations", func(r chi.Router) {
			r.Post("/", configurations.Create(d.Sessions, logg))

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", configurations.Get(d.Sessions, logg))
				r.Delete("/", configurations.End(d.Sessions, logg))
				r.Post("/features/{featureId}/toggle", configurations.ToggleFeature(d.Sessions, logg))
				r.Post("/add-ons/{addOnId}/toggle", configurations.ToggleAddOn(d.Sessions, logg))
				r.Put("/usage/{tierId}", configurations.SetUsage(d.Sessions, logg))
				r.Post("/plan", configurations.SelectPlan(d.Sessions, logg))
				r.Post("/support", configurations.SelectSupport(d.Sessions, logg))
				r.Post("/enterprise/{key}/toggle", configurations.ToggleEnterprise(d.Sessions, logg))
				r.Post("/matrix/{tier}/{addOnId}/toggle", configurations.ToggleMatrix(d.Sessions, logg))
				r.Put("/currency", configurations.SetCurrency(d.Sessions, logg))
				r.Post("/advance", configurations.Advance(d.Sessions, logg))
				r.Post("/retreat", configurations.Retreat(d.Sessions, logg))
				r.With(middleware.Idempotency(d.Idempotency, cfg.Eventing.SaveIdempotencyTTL, logg)).
					Post("/save", configurations.Save(d.Sessions, logg))
			})
		})
	})

	return r
}
