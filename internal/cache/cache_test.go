package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventdetection/event-detection/internal/keywords"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newMemBackend() *memBackend { return &memBackend{data: map[string][]byte{}} }

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type countingLoader struct {
	calls atomic.Int64
	sets  map[string]keywords.KeywordSet
}

func (l *countingLoader) ArticleKeywords(_ context.Context, id string) (keywords.KeywordSet, error) {
	l.calls.Add(1)
	time.Sleep(5 * time.Millisecond)
	kw, ok := l.sets[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrArticleNotFound, 0, "article %s", id)
	}
	return kw, nil
}

func sampleSet() keywords.KeywordSet {
	kw := keywords.NewKeywordSet()
	kw.Add("NN", "earthquake", 2)
	return kw
}

func TestKeywordsLoadsOnceThenHits(t *testing.T) {
	loader := &countingLoader{sets: map[string]keywords.KeywordSet{"a1": sampleSet()}}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(newMemBackend(), loader, time.Minute, m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		kw, err := c.Keywords(ctx, "a1")
		if err != nil {
			t.Fatalf("Keywords: %v", err)
		}
		if !kw.Contains("NN", "earthquake") {
			t.Fatalf("unexpected set %v", kw)
		}
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("expected 1 load, got %d", got)
	}
	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %d/%d", hits, misses)
	}
}

func TestKeywordsConcurrentMissesShareLoad(t *testing.T) {
	loader := &countingLoader{sets: map[string]keywords.KeywordSet{"a1": sampleSet()}}
	c := New(newMemBackend(), loader, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Keywords(context.Background(), "a1"); err != nil {
				t.Errorf("Keywords: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := loader.calls.Load(); got > 2 {
		t.Errorf("expected concurrent misses to share loads, got %d loads", got)
	}
}

func TestKeywordsNotExtracted(t *testing.T) {
	loader := &countingLoader{sets: map[string]keywords.KeywordSet{"a1": nil}}
	c := New(newMemBackend(), loader, time.Minute, nil)

	_, err := c.Keywords(context.Background(), "a1")
	if !errors.Is(err, apperrors.ErrArticleNotFound) {
		t.Errorf("expected ErrArticleNotFound, got %v", err)
	}
	_, err = c.Keywords(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrArticleNotFound) {
		t.Errorf("expected ErrArticleNotFound, got %v", err)
	}
}

func TestBackendFailureFallsBackToLoader(t *testing.T) {
	backend := newMemBackend()
	backend.fail = true
	loader := &countingLoader{sets: map[string]keywords.KeywordSet{"a1": sampleSet()}}
	c := New(backend, loader, time.Minute, nil)

	if _, err := c.Keywords(context.Background(), "a1"); err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	backend := newMemBackend()
	loader := &countingLoader{sets: map[string]keywords.KeywordSet{"a1": sampleSet(), "a2": sampleSet()}}
	c := New(backend, loader, time.Minute, nil)
	ctx := context.Background()

	c.Keywords(ctx, "a1")
	c.Keywords(ctx, "a2")
	backend.data["other:key"] = []byte("x")

	if err := c.Invalidate(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "a1"); ok {
		t.Error("a1 still cached after Invalidate")
	}
	if _, ok := c.Get(ctx, "a2"); !ok {
		t.Error("a2 dropped by Invalidate(a1)")
	}

	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "a2"); ok {
		t.Error("a2 still cached after InvalidateAll")
	}
	if _, ok := backend.data["other:key"]; !ok {
		t.Error("InvalidateAll removed a key outside the keyword prefix")
	}
}

func TestGetOrComputeReportsHits(t *testing.T) {
	c := New(newMemBackend(), &countingLoader{}, 0, nil)
	calls := 0
	compute := func(context.Context) (keywords.KeywordSet, error) {
		calls++
		return sampleSet(), nil
	}
	ctx := context.Background()

	_, hit, err := c.GetOrCompute(ctx, "a1", compute)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	_, hit, err = c.GetOrCompute(ctx, "a1", compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("expected compute once, got %d", calls)
	}

	failing := func(context.Context) (keywords.KeywordSet, error) { return nil, errors.New("tagger down") }
	if _, _, err := c.GetOrCompute(ctx, "a2", failing); err == nil {
		t.Error("expected compute error")
	}
	if _, ok := c.Get(ctx, "a2"); ok {
		t.Error("failed compute must not be cached")
	}
}
