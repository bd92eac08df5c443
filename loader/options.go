package loader

import (
	"io"
	"os"
)

type options struct {
	logger          *Logger
	metrics         MetricsCollector
	out             io.Writer
	inMemory        bool
	readConcurrency int
	readRateLimit   int64
}

// Option configures New.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:          NoopLogger(),
		metrics:         NoopMetricsCollector{},
		out:             os.Stdout,
		readConcurrency: 1,
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. A nil collector disables metrics.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithOutput sets where Info listings are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w == nil {
			w = io.Discard
		}
		o.out = w
	}
}

// WithInMemory sets the initial cache flag of every field.
func WithInMemory(on bool) Option {
	return func(o *options) {
		o.inMemory = on
	}
}

// WithReadConcurrency bounds the chunks fetched in parallel by one read.
func WithReadConcurrency(n int) Option {
	return func(o *options) {
		o.readConcurrency = n
	}
}

// WithReadRateLimit caps the chunk bytes read from the store per second.
func WithReadRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.readRateLimit = bytesPerSec
	}
}
