package liath

import (
	"log/slog"
	"time"

	"github.com/liathdb/liath/embedding"
)

// DefaultEmbeddingDimensions is the dimension of the built-in deterministic
// embedding provider used when none is configured.
const DefaultEmbeddingDimensions = 384

type options struct {
	logger           *Logger
	provider         embedding.Provider
	embedConcurrency int64
	embedRPS         float64
	maxSleep         time.Duration
	executeTimeout   time.Duration
	adminPrincipal   string
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithEmbeddingProvider configures the embedding provider backing
// generate_embedding, store_document, semantic_search and the memory helpers.
// The provider is wrapped with the configured concurrency and rate bounds.
//
// The default is a deterministic hash-based provider, useful for tests and
// for callers that only need the key-value and vector surfaces.
func WithEmbeddingProvider(p embedding.Provider) Option {
	return func(o *options) {
		if p != nil {
			o.provider = p
		}
	}
}

// WithEmbeddingLimits bounds embedding generation: at most maxConcurrent
// in-flight calls, and at most rps calls per second (0 = unlimited rate).
func WithEmbeddingLimits(maxConcurrent int64, rps float64) Option {
	return func(o *options) {
		if maxConcurrent > 0 {
			o.embedConcurrency = maxConcurrent
		}
		o.embedRPS = rps
	}
}

// WithMaxSleep caps the duration a single script sleep() call may block.
func WithMaxSleep(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxSleep = d
		}
	}
}

// WithExecuteTimeout sets a default deadline applied to every Execute call
// whose context carries no deadline of its own. Zero disables the default.
func WithExecuteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.executeTimeout = d
	}
}

// WithAdminPrincipal changes the principal seeded with the full permission
// set when the database is opened for the first time.
func WithAdminPrincipal(id string) Option {
	return func(o *options) {
		o.adminPrincipal = id
	}
}

// WithoutAdminPrincipal disables the admin bootstrap entirely. All principals
// then start with no permissions and must be added through Auth().
func WithoutAdminPrincipal() Option {
	return func(o *options) {
		o.adminPrincipal = ""
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		embedConcurrency: 4,
		maxSleep:         time.Second,
		adminPrincipal:   "admin",
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.provider == nil {
		o.provider = embedding.NewStatic(DefaultEmbeddingDimensions)
	}
	return o
}
