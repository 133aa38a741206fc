package options

import (
	"context"
	"log/slog"

	"github.com/fxamacker/cbor/v2"
)

// DefaultReportSize is the frame size of the card link.
const DefaultReportSize = 64

type Options struct {
	Logger  *slog.Logger
	EncMode cbor.EncMode
	Context context.Context
	// Paths restricts device enumeration to the given reader paths.
	Paths []string
	// ReportSize is the card link frame size in bytes.
	ReportSize int
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithEncMode(encMode cbor.EncMode) Option {
	return func(opts *Options) {
		opts.EncMode = encMode
	}
}

func WithContext(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Context = ctx
	}
}

func WithPaths(paths ...string) Option {
	return func(opts *Options) {
		opts.Paths = paths
	}
}

func WithReportSize(size int) Option {
	return func(opts *Options) {
		opts.ReportSize = size
	}
}

func NewOptions(opts ...Option) *Options {
	encMode, _ := cbor.CTAP2EncOptions().EncMode()
	oo := &Options{
		Logger:     slog.Default(),
		EncMode:    encMode,
		Context:    context.Background(),
		ReportSize: DefaultReportSize,
	}

	for _, opt := range opts {
		opt(oo)
	}

	return oo
}
