package web

import (
	"net/http"

	"github.com/rs/cors"

	"gomarket_import/internal/auth"
	"gomarket_import/metrics"
	"gomarket_import/pkg/logger"
	"gomarket_import/pkg/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter собирает маршруты API. Чтение доступно любой роли, изменения -- оператору и админу,
// проведение документов -- только админу.
func NewRouter(imports *ImportHandler, documents *DocumentHandler, db Pinger, opts Options, log logger.Logger) http.Handler {
	authenticated := auth.AuthMiddleware(opts.JWTSecret)
	writer := auth.RoleMiddleware(opts.JWTSecret, auth.RoleOperator, auth.RoleAdmin)
	admin := auth.RoleMiddleware(opts.JWTSecret, auth.RoleAdmin)

	routes := []struct {
		pattern string
		handler http.HandlerFunc
		roles   func(http.Handler) http.Handler
	}{
		{"POST /api/imports", imports.Start, writer},
		{"GET /api/imports/catalog", imports.Catalog, nil},
		{"GET /api/imports/{id}/progress", imports.Progress, nil},
		{"POST /api/imports/{id}/cancel", imports.Cancel, writer},
		{"GET /api/imports/{id}/log", imports.Log, nil},
		{"POST /api/documents/{id}/post", documents.Post, admin},
		{"POST /api/documents/{id}/unpost", documents.Unpost, admin},
		{"POST /api/products/match", documents.Match, writer},
		{"GET /api/products/match/{id}/progress", imports.Progress, nil},
	}

	mux := http.NewServeMux()
	for _, route := range routes {
		var h http.Handler = route.handler
		if route.roles != nil {
			h = route.roles(h)
		}
		mux.Handle(route.pattern, authenticated(h))
	}
	mux.Handle("GET /metrics", metrics.MetricsHandler())
	mux.Handle("GET /health", health(db))

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return middleware.Chain(mux,
		c.Handler,
		middleware.LoggingMiddleware(log),
		middleware.PrometheusMiddleware,
	)
}
