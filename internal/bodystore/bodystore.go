// Package bodystore reads article bodies, which live outside the database
// either on local disk or in an S3 bucket.
package bodystore

import (
	"context"
	"fmt"

	"github.com/eventdetection/event-detection/pkg/config"
	"github.com/eventdetection/event-detection/pkg/metrics"
)

// Store returns the raw text of an article body by file name.
type Store interface {
	Body(ctx context.Context, filename string) (string, error)
}

// New builds the Store selected by cfg.Backend ("fs" or "s3"). m may be nil.
func New(ctx context.Context, cfg config.BodiesConfig, m *metrics.Metrics) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFileStore(cfg.Dir), nil
	case "s3":
		return NewS3Store(ctx, cfg, m)
	default:
		return nil, fmt.Errorf("unknown bodies backend %q", cfg.Backend)
	}
}
