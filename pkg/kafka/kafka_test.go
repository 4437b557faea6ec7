package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/segmentio/kafka-go"
)

func TestDecodeJSON(t *testing.T) {
	ev, err := DecodeJSON[ArticleEvent]([]byte(`{"article_id":"a1"}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if ev.ArticleID != "a1" {
		t.Errorf("ArticleID = %q, want a1", ev.ArticleID)
	}

	_, err = DecodeJSON[ArticleEvent]([]byte(`{not json`))
	if !apperrors.IsInput(err) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestHandleJSON(t *testing.T) {
	var got ValidationRequest
	h := HandleJSON(func(_ context.Context, req ValidationRequest) error {
		got = req
		return nil
	})
	if err := h(context.Background(), nil, []byte(`{"query_id":"q1","article_id":"a1"}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.QueryID != "q1" || got.ArticleID != "a1" {
		t.Errorf("unexpected request %+v", got)
	}

	boom := errors.New("boom")
	h = HandleJSON(func(context.Context, ValidationRequest) error { return boom })
	if err := h(context.Background(), nil, []byte(`{}`)); !errors.Is(err, boom) {
		t.Errorf("expected wrapped handler error, got %v", err)
	}
	if err := h(context.Background(), nil, []byte(`[`)); !apperrors.IsInput(err) {
		t.Errorf("expected input error for malformed message, got %v", err)
	}
}

type fakeWriter struct {
	writes [][]kafka.Message
	err    error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, msgs)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "validation-requests")

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "q1", Value: ValidationRequest{QueryID: "q1", ArticleID: "a1"}},
		{Key: "q1", Value: ValidationRequest{QueryID: "q1", ArticleID: "a2"}},
	})
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(w.writes) != 1 || len(w.writes[0]) != 2 {
		t.Fatalf("expected one write of 2 messages, got %v", w.writes)
	}
	msg := w.writes[0][1]
	if string(msg.Key) != "q1" {
		t.Errorf("key = %q, want q1", msg.Key)
	}
	var req ValidationRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil || req.ArticleID != "a2" {
		t.Errorf("value decoded to %+v, %v", req, err)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != EventTypeHeader || string(msg.Headers[0].Value) != "kafka.ValidationRequest" {
		t.Errorf("unexpected headers %v", msg.Headers)
	}

	if err := p.PublishBatch(context.Background(), nil); err != nil || len(w.writes) != 1 {
		t.Errorf("empty batch should not write, err=%v writes=%d", err, len(w.writes))
	}
}

func TestProducerEncodingFailurePublishesNothing(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "keywords-extracted")

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "a1", Value: KeywordsExtractedEvent{ArticleID: "a1"}},
		{Key: "a2", Value: make(chan int)},
	})
	if err == nil {
		t.Fatal("expected an encoding error")
	}
	if len(w.writes) != 0 {
		t.Errorf("expected no writes, got %d", len(w.writes))
	}
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := newProducer(&fakeWriter{err: boom}, "article-ingest")
	if err := p.Publish(context.Background(), Event{Key: "a1", Value: ArticleEvent{ArticleID: "a1"}}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

// fakeReader serves msgs in order, then cancels the consumer's context.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerRetriesTransientFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte(`{"article_id":"a1"}`)},
			{Offset: 2, Value: []byte(`{broken`)},
			{Offset: 3, Value: []byte(`{"article_id":"flaky"}`)},
			{Offset: 4, Value: []byte(`{"article_id":"down"}`)},
		},
	}
	calls := map[string]int{}
	c := newConsumer(r, "article-ingest", HandleJSON(func(_ context.Context, ev ArticleEvent) error {
		calls[ev.ArticleID]++
		switch {
		case ev.ArticleID == "flaky" && calls["flaky"] < 3:
			return errors.New("connection reset")
		case ev.ArticleID == "down":
			return errors.New("database unavailable")
		}
		return nil
	}))
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if calls["a1"] != 1 || calls["flaky"] != 3 || calls["down"] != c.retry.MaxAttempts {
		t.Errorf("unexpected handler calls %v", calls)
	}
	want := []int64{1, 2, 3, 4}
	if len(r.committed) != len(want) {
		t.Fatalf("committed offsets %v, want %v", r.committed, want)
	}
	for i := range want {
		if r.committed[i] != want[i] {
			t.Errorf("committed offsets %v, want %v", r.committed, want)
			break
		}
	}
}
