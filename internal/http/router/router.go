package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hostbridge/hostbridge/internal/health"
	"github.com/hostbridge/hostbridge/internal/http/handler"
	"github.com/hostbridge/hostbridge/internal/http/middleware"
	"github.com/hostbridge/hostbridge/internal/http/response"
	"github.com/hostbridge/hostbridge/internal/service"
)

type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	RelationshipHandler *handler.RelationshipHandler
	AuthService         service.AuthServiceInterface
	CORSOrigins         []string
	AuthRateLimitRPM    int
	APIRateLimitRPM     int
	Readiness           *health.ProbeRunner
	EnableOTelHTTP      bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	apiLimiter := middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware()
	requireAuth := middleware.AuthMiddleware(dep.AuthService)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "hostbridge"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unready", "checks": results})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(authLimiter).Get("/google", dep.AuthHandler.GoogleLogin)
		r.With(authLimiter).Get("/google/callback", dep.AuthHandler.GoogleCallback)
		r.With(authLimiter).Get("/verify", dep.AuthHandler.Verify)
		r.With(authLimiter).Post("/logout", dep.AuthHandler.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiLimiter)
		r.Use(requireAuth)
		r.Get("/hosts", dep.RelationshipHandler.ListHosts)
		r.Post("/hosts", dep.RelationshipHandler.RequestAccess)
		r.Delete("/hosts/{relationshipID}", dep.RelationshipHandler.RemoveHost)
		r.Get("/host/requests", dep.RelationshipHandler.ListRequests)
		r.Post("/host/requests/{relationshipID}/accept", dep.RelationshipHandler.AcceptRequest)
		r.Post("/host/requests/{relationshipID}/reject", dep.RelationshipHandler.RejectRequest)
		r.Get("/host/controllers", dep.RelationshipHandler.ListControllers)
		r.Delete("/host/controllers/{relationshipID}", dep.RelationshipHandler.RemoveController)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
