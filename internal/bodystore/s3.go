package bodystore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/eventdetection/event-detection/pkg/config"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/eventdetection/event-detection/pkg/resilience"
)

// ObjectGetter is the part of the S3 API the store uses. *s3.Client
// satisfies it.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads bodies from <bucket>/<prefix><filename>. Transient failures
// are retried and a circuit breaker stops calls while S3 is failing.
type S3Store struct {
	client ObjectGetter
	bucket string
	prefix string
	policy *resilience.Policy
	logger *slog.Logger
}

// NewS3Store loads AWS configuration from the default chain, with region and
// profile overrides from cfg.
func NewS3Store(ctx context.Context, cfg config.BodiesConfig, m *metrics.Metrics) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.New(apperrors.ErrConfiguration, 0, "bodies.bucket is required for the s3 backend")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix, m), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client ObjectGetter, bucket, prefix string, m *metrics.Metrics) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	breaker := resilience.BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		Ignore:           isNotFound,
	}
	if m != nil {
		breaker.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		policy: &resilience.Policy{
			Name: "s3-get-body",
			Retry: resilience.RetryConfig{
				MaxAttempts:    3,
				InitialDelay:   200 * time.Millisecond,
				MaxDelay:       2 * time.Second,
				AttemptTimeout: 10 * time.Second,
				Retryable:      func(err error) bool { return !isNotFound(err) },
			},
			Breaker: resilience.NewCircuitBreaker("s3-bodies", breaker),
		},
		logger: slog.Default().With("component", "s3-bodies", "bucket", bucket),
	}
}

func (s *S3Store) Body(ctx context.Context, filename string) (string, error) {
	key := s.prefix + filename
	var body string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		b, err := s.get(ctx, key)
		body = b
		return err
	})
	if isNotFound(err) {
		return "", apperrors.Newf(apperrors.ErrArticleNotFound, 0, "body s3://%s/%s", s.bucket, key)
	}
	if err != nil {
		s.logger.Error("reading body failed", "key", key, "error", err)
		return "", fmt.Errorf("reading body %s: %w", key, err)
	}
	return body, nil
}

func (s *S3Store) get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("reading object body: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
