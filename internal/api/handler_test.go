package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventdetection/event-detection/internal/evaluation"
	"github.com/eventdetection/event-detection/internal/keywords"
	"github.com/eventdetection/event-detection/internal/lexical"
	"github.com/eventdetection/event-detection/internal/postag"
	"github.com/eventdetection/event-detection/internal/query"
	"github.com/eventdetection/event-detection/pkg/config"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/health"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type stubTagger struct{ tagged string }

func (s stubTagger) Tag(string) ([]postag.Sentence, error) {
	return postag.ParseSentences(s.tagged)
}

type mapCache struct {
	sets        map[string]keywords.KeywordSet
	invalidated []string
	flushed     bool
}

func (c *mapCache) Keywords(_ context.Context, id string) (keywords.KeywordSet, error) {
	kw, ok := c.sets[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrArticleNotFound, 0, "article %s", id)
	}
	return kw, nil
}

func (c *mapCache) Invalidate(_ context.Context, ids ...string) error {
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

func (c *mapCache) InvalidateAll(context.Context) error {
	c.flushed = true
	return nil
}

func (c *mapCache) Stats() (int64, int64) { return 3, 1 }

const apiThesaurus = `
noun:
  car:
    synonyms: [automobile]
`

func newTestServer(t *testing.T, cache KeywordCache) *httptest.Server {
	t.Helper()
	stop := lexical.DefaultStoplist()
	ex, err := keywords.NewExtractor(lexical.NewNormalizer(nil), stop, config.Default().Keywords,
		keywords.WithTagger(stubTagger{tagged: "Cats_NNS like_VBP cats_NNS ._. Cats_NNS are_VBP cute_JJ ._."}))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	th, err := query.LoadThesaurus(strings.NewReader(apiThesaurus))
	if err != nil {
		t.Fatal(err)
	}
	x := query.NewExpander(stubTagger{tagged: "car_NN crashed_VBD"}, stop, th, config.ExpansionConfig{})

	evCfg := config.Default().Evaluation
	evCfg.BootstrapSamples = 200
	evCfg.Permutations = 200
	ev, err := evaluation.NewEvaluator(evCfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	h := New(ex, x, ev, cache)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	srv := httptest.NewServer(NewRouter(h, health.NewChecker("api"), m, config.ServerConfig{WriteTimeout: 5 * time.Second}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return resp, out
}

func TestExtractKeywords(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, out := post(t, srv, "/api/v1/keywords", map[string]string{
		"id":           "a1",
		"title_tagged": "Earthquake_NN in_IN Japan_NNP",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	kw, _ := out["keywords"].(map[string]any)
	if _, ok := kw["NN"]; !ok {
		t.Errorf("expected NN bucket, got %v", out)
	}
}

func TestExtractKeywordsUsesTaggerForPlainText(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, out := post(t, srv, "/api/v1/keywords", map[string]string{"title": "Cats like cats"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
}

func TestExtractKeywordsRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := post(t, srv, "/api/v1/keywords", map[string]string{"title_tagged": "Earthquake_ in_IN"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	r, err := http.Post(srv.URL+"/api/v1/keywords", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d, want 400", r.StatusCode)
	}
}

func TestExpand(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, out := post(t, srv, "/api/v1/expand", map[string]string{"subject": "car", "verb": "crashed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	exp := out["expansion"].(map[string]any)
	car := exp["NN"].(map[string]any)["car"].([]any)
	if len(car) != 1 || car[0] != "automobile" {
		t.Errorf("car expansion = %v", car)
	}

	resp, _ = post(t, srv, "/api/v1/expand", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query: status = %d, want 400", resp.StatusCode)
	}
}

func TestScore(t *testing.T) {
	cache := &mapCache{sets: map[string]keywords.KeywordSet{"a1": {"NN": {"car": 1}}}}
	srv := newTestServer(t, cache)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		score  float64
	}{
		{
			name: "synonym match",
			body: map[string]any{
				"expansion": map[string]any{"NN": map[string]any{"car": []string{"automobile"}}},
				"keywords":  map[string]any{"NN": []any{[]any{"automobile", 1}}},
			},
			status: http.StatusOK,
			score:  0.5,
		},
		{
			name: "stored keywords",
			body: map[string]any{
				"expansion":  map[string]any{"NN": map[string]any{"car": []string{}}},
				"article_id": "a1",
			},
			status: http.StatusOK,
			score:  1,
		},
		{
			name: "unknown article",
			body: map[string]any{
				"expansion":  map[string]any{"NN": map[string]any{"car": []string{}}},
				"article_id": "missing",
			},
			status: http.StatusNotFound,
		},
		{
			name:   "empty expansion",
			body:   map[string]any{"expansion": map[string]any{}, "keywords": map[string]any{}},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := post(t, srv, "/api/v1/score", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.status, out)
			}
			if tt.status == http.StatusOK && out["score"].(float64) != tt.score {
				t.Errorf("score = %v, want %v", out["score"], tt.score)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	srv := newTestServer(t, nil)
	var samples []evaluation.Sample
	for q := 0; q < 3; q++ {
		for a := 0; a < 3; a++ {
			s := evaluation.Sample{Pair: evaluation.Pair{QueryID: string(rune('a' + q)), ArticleID: string(rune('x' + a))}}
			if q == a {
				s.Score, s.Label = 0.95, true
			} else {
				s.Score = 0.05
			}
			samples = append(samples, s)
		}
	}

	resp, out := post(t, srv, "/api/v1/evaluate", map[string]any{"samples": samples, "stages": []string{"test"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	if out["global_f1"].(float64) != 1 {
		t.Errorf("global_f1 = %v, want 1", out["global_f1"])
	}
	if _, ok := out["leave_one_out"]; !ok {
		t.Error("expected leave_one_out in report")
	}

	resp, out = post(t, srv, "/api/v1/evaluate", map[string]any{"samples": samples})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("default stages: status = %d, body %v", resp.StatusCode, out)
	}
	for _, key := range []string{"leave_one_out", "confidence_interval", "hypothesis"} {
		if _, ok := out[key]; !ok {
			t.Errorf("default stages: expected %s in report", key)
		}
	}

	resp, _ = post(t, srv, "/api/v1/evaluate", map[string]any{"samples": []any{}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty dataset: status = %d, want 422", resp.StatusCode)
	}
	resp, _ = post(t, srv, "/api/v1/evaluate", map[string]any{"samples": samples, "stages": []string{"cluster"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown stage: status = %d, want 400", resp.StatusCode)
	}
}

func TestArticleKeywordsAndCache(t *testing.T) {
	cache := &mapCache{sets: map[string]keywords.KeywordSet{"a1": {"NN": {"car": 1}}}}
	srv := newTestServer(t, cache)

	resp, err := http.Get(srv.URL + "/api/v1/articles/a1/keywords")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/articles/nope/keywords")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp, _ = post(t, srv, "/api/v1/cache/invalidate", map[string]any{"article_ids": []string{"a1"}})
	if resp.StatusCode != http.StatusOK || len(cache.invalidated) != 1 {
		t.Errorf("invalidate: status %d, invalidated %v", resp.StatusCode, cache.invalidated)
	}
	r, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if !cache.flushed {
		t.Error("empty invalidate body should flush every keyword set")
	}
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
