package robusthttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Adapts slog to retryablehttp.LeveledLogger, demoting ERROR to WARN since most failures are retried.
type LeveledSlog struct {
	inner *slog.Logger
}

func (l LeveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l LeveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l LeveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type options struct {
	retry   *retryablehttp.Client
	timeout time.Duration
}

type Option func(*options)

func WithMaxRetries(maxRetries int) Option {
	return func(o *options) {
		o.retry.RetryMax = maxRetries
	}
}

func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(o *options) {
		o.retry.RetryWaitMin = waitMin
		o.retry.RetryWaitMax = waitMax
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.retry.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: logger})
	}
}

// Overall per-request deadline, covering every retry.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// HTTP client for outbound webhooks and similar calls. Retries connection errors and 5xx responses (except 501), honoring Retry-After on 429 and 503. Requests are traced with otelhttp.
func NewClient(opts ...Option) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(LeveledSlog{inner: slog.Default().With("subsystem", "robusthttp")})

	o := &options{retry: retryClient, timeout: 20 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	client := retryClient.StandardClient()
	client.Timeout = o.timeout
	return client
}
