package api

import (
	"net/http"

	"github.com/eventdetection/event-detection/pkg/config"
	"github.com/eventdetection/event-detection/pkg/health"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/eventdetection/event-detection/pkg/middleware"
)

// NewRouter builds the API handler with its routes and middleware.
//
// Route table:
//
//	POST   /api/v1/keywords                → extract a keyword set
//	POST   /api/v1/expand                  → expand query elements
//	POST   /api/v1/score                   → score an expansion against keywords
//	POST   /api/v1/evaluate                → calibrate and evaluate a dataset
//	GET    /api/v1/articles/{id}/keywords  → stored keyword set (cached)
//	GET    /api/v1/cache/stats             → keyword cache counters
//	POST   /api/v1/cache/invalidate        → drop cached keyword sets
//	GET    /health/live, /health/ready     → health probes
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → mux
//
// m may be nil, which drops the metrics middleware. Handlers are bounded by
// cfg.WriteTimeout and CORS admits cfg.CORSOrigins.
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()

	checker.Mount(mux)

	mux.HandleFunc("POST /api/v1/keywords", h.ExtractKeywords)
	mux.HandleFunc("POST /api/v1/expand", h.Expand)
	mux.HandleFunc("POST /api/v1/score", h.Score)
	mux.HandleFunc("POST /api/v1/evaluate", h.Evaluate)
	mux.HandleFunc("GET /api/v1/articles/{id}/keywords", h.ArticleKeywords)

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	var chain http.Handler = mux
	if cfg.WriteTimeout > 0 {
		chain = middleware.Timeout(cfg.WriteTimeout)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(cfg.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)
	return chain
}
