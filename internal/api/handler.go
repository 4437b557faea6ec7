// Package api serves keyword extraction, query expansion, match scoring and
// evaluation over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventdetection/event-detection/internal/article"
	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/matcher"
	"github.com/eventdetection/event-detection/internal/query"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/logger"
)

const maxBodyBytes = 8 << 20

// KeywordCache serves stored article keyword sets.
type KeywordCache interface {
	Keywords(ctx context.Context, articleID string) (keywords.KeywordSet, error)
	Invalidate(ctx context.Context, articleIDs ...string) error
	InvalidateAll(ctx context.Context) error
	Stats() (hits, misses int64)
}

// Handler serves the extraction, expansion, scoring and evaluation API.
type Handler struct {
	extractor *keywords.Extractor
	expander  *query.Expander
	evaluator *evaluation.Evaluator
	cache     KeywordCache
	logger    *slog.Logger
}

// New returns a Handler. cache may be nil, which disables the article
// keyword and cache routes.
func New(extractor *keywords.Extractor, expander *query.Expander, evaluator *evaluation.Evaluator, cache KeywordCache) *Handler {
	return &Handler{
		extractor: extractor,
		expander:  expander,
		evaluator: evaluator,
		cache:     cache,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

type keywordsRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	TitleTagged string `json:"title_tagged"`
	BodyTagged  string `json:"body_tagged"`
}

type keywordsResponse struct {
	ID       string              `json:"id"`
	Keywords keywords.KeywordSet `json:"keywords"`
	Warning  string              `json:"warning,omitempty"`
}

// ExtractKeywords handles POST /api/v1/keywords.
func (h *Handler) ExtractKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = "request"
	}
	a := article.Article{
		ID:          req.ID,
		Title:       req.Title,
		Body:        req.Body,
		TitleTagged: req.TitleTagged,
		BodyTagged:  req.BodyTagged,
	}
	start := time.Now()
	kw, err := h.extractor.Extract(a)
	resp := keywordsResponse{ID: req.ID, Keywords: kw}
	if err != nil {
		if kw == nil || !errors.Is(err, apperrors.ErrUnobservedSubword) {
			h.fail(w, r, err)
			return
		}
		resp.Warning = err.Error()
	}
	logger.FromContext(r.Context()).Info("keywords extracted",
		"id", req.ID,
		"keywords", kw.Len(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

type expandResponse struct {
	Text      string          `json:"text"`
	Expansion query.Expansion `json:"expansion"`
}

// Expand handles POST /api/v1/expand. The body holds the query elements.
func (h *Handler) Expand(w http.ResponseWriter, r *http.Request) {
	var parts query.Parts
	if !h.decode(w, r, &parts) {
		return
	}
	q, err := query.New("request", parts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.expander.ExpandQuery(r.Context(), q); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, expandResponse{Text: q.Text(), Expansion: q.Expansion})
}

type scoreRequest struct {
	Expansion query.Expansion     `json:"expansion"`
	Keywords  keywords.KeywordSet `json:"keywords"`
	ArticleID string              `json:"article_id"`
}

type scoreResponse struct {
	Algorithm string  `json:"algorithm"`
	Score     float64 `json:"score"`
}

// Score handles POST /api/v1/score. The keyword set is taken from the
// request, or from the cache when only article_id is given.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	kw := req.Keywords
	if kw == nil && req.ArticleID != "" {
		if h.cache == nil {
			h.writeError(w, http.StatusServiceUnavailable, "stored keywords are not available")
			return
		}
		var err error
		if kw, err = h.cache.Keywords(r.Context(), req.ArticleID); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	score, err := matcher.Score(req.Expansion, kw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, scoreResponse{Algorithm: matcher.Algorithm, Score: score})
}

type evaluateRequest struct {
	Algorithm string              `json:"algorithm"`
	Samples   []evaluation.Sample `json:"samples"`
	Stages    []string            `json:"stages"`
}

// Evaluate handles POST /api/v1/evaluate. Without stages every stage runs.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Algorithm == "" {
		req.Algorithm = matcher.Algorithm
	}
	stages := make([]evaluation.Stage, 0, len(req.Stages))
	for _, s := range req.Stages {
		st, err := evaluation.ParseStage(s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		stages = append(stages, st)
	}
	if len(stages) == 0 {
		stages = append(stages, evaluation.StageAll)
	}
	ds, err := evaluation.NewDataset(req.Algorithm, req.Samples)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	report, err := h.evaluator.Run(r.Context(), ds, stages...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ArticleKeywords handles GET /api/v1/articles/{id}/keywords.
func (h *Handler) ArticleKeywords(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "stored keywords are not available")
		return
	}
	id := r.PathValue("id")
	kw, err := h.cache.Keywords(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, keywordsResponse{ID: id, Keywords: kw})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int64{"hits": hits, "misses": misses, "total": hits + misses})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate. An optional
// {"article_ids": [...]} body limits the invalidation.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	var req struct {
		ArticleIDs []string `json:"article_ids"`
	}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	var err error
	if len(req.ArticleIDs) > 0 {
		err = h.cache.Invalidate(r.Context(), req.ArticleIDs...)
	} else {
		err = h.cache.InvalidateAll(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Info("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
