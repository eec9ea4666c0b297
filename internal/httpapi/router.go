package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gateway's chi router: the QIDO-RS and WADO-RS
// routes, the supplemental /ping, /status, /dimse/echo endpoints, and a
// conditionally-mounted /metrics.
func (g *Gateway) NewRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(g.requestLogger)
	r.Use(chimiddleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.Config.CORS.Origin,
		AllowedMethods:   g.Config.CORS.Methods,
		AllowedHeaders:   g.Config.CORS.AllowedHeaders,
		AllowCredentials: g.Config.CORS.Credentials,
		MaxAge:           300,
	}))

	r.Get("/ping", g.handlePing)
	r.Get("/status", g.handleStatus)
	r.Post("/dimse/echo", g.handleDimseEcho)

	if g.Config.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/studies", g.handleQIDOStudies)
	r.Get("/studies/{study}", g.handleWADOStudy)
	r.Get("/studies/{study}/series", g.handleQIDOSeries)
	r.Get("/studies/{study}/series/{series}", g.handleWADOSeries)
	r.Get("/studies/{study}/series/{series}/instances", g.handleQIDOInstances)
	r.Get("/studies/{study}/series/{series}/instances/{instance}", g.handleWADOInstance)

	return r
}

// requestLogger logs each request at Info level with method, path, status,
// and duration, and feeds the per-route HTTP metrics.
func (g *Gateway) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		g.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(started)).
			Msg("http request")

		if g.Metrics != nil {
			statusClass := statusClassOf(ww.Status())
			g.Metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, statusClass).Inc()
			g.Metrics.HTTPRequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(started).Seconds())
		}
	})
}

// statusClassOf buckets an HTTP status code into its "2xx"/"4xx"/"5xx" class
// for the http_requests_total metric's low-cardinality label.
func statusClassOf(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
