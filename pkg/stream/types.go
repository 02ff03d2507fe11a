package stream

import (
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/ssargent/devapps/pkg/codec"
)

// DefaultBufferSize is used when Options.BufferSize is not set.
const DefaultBufferSize = 64 * 1024

// Options holds the settings shared by writers and readers.
type Options struct {
	BufferSize       int             // Buffer between gzip and the file
	CompressionLevel int             // gzip level; 0 selects gzip.DefaultCompression
	Registry         *codec.Registry // Payload decoders; nil selects codec.DefaultRegistry
	Logger           *zerolog.Logger // Debug logging of open/close; nil disables it
}

// Option adjusts Options.
type Option func(*Options)

// WithBufferSize sets the file buffer size.
func WithBufferSize(n int) Option {
	return func(o *Options) { o.BufferSize = n }
}

// WithCompressionLevel sets the gzip compression level.
func WithCompressionLevel(level int) Option {
	return func(o *Options) { o.CompressionLevel = level }
}

// WithRegistry sets the registry used to decode frame payloads.
func WithRegistry(r *codec.Registry) Option {
	return func(o *Options) { o.Registry = r }
}

// WithLogger enables debug logging.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = &l }
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}

func (o Options) level() int {
	if o.CompressionLevel == 0 {
		return gzip.DefaultCompression
	}
	return o.CompressionLevel
}

func (o Options) registry() *codec.Registry {
	if o.Registry == nil {
		return codec.DefaultRegistry
	}
	return o.Registry
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// WriterConfig holds configuration for a Writer
type WriterConfig struct {
	FilePath string // Destination file; parent directories are created
	Options
}

// ReaderConfig holds configuration for a Reader
type ReaderConfig struct {
	FilePath string // Source file
	Options
}

// RecordIterator provides streaming access to decoded records
type RecordIterator interface {
	Next() bool
	Record() *codec.DeviceApps
	Err() error
	Close() error
}
