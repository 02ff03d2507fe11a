package stream

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/ssargent/devapps/pkg/codec"
)

// Writer appends framed records to a gzip-compressed file.
// It is not safe for concurrent use.
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	gz      *gzip.Writer
	header  []byte
	config  WriterConfig
	logger  zerolog.Logger
	written int64 // Uncompressed bytes, headers included
	records int
	err     error // Sticky write error
	closed  bool
}

// NewWriter creates (or truncates) the destination file and prepares it
// for writing.
func NewWriter(config WriterConfig) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, &codec.StreamIOError{Op: "create dir", Path: filepath.Dir(config.FilePath), Err: err}
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, &codec.StreamIOError{Op: "open", Path: config.FilePath, Err: err}
	}

	buf := bufio.NewWriterSize(file, config.bufferSize())
	gz, err := gzip.NewWriterLevel(buf, config.level())
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	w := &Writer{
		file:   file,
		buf:    buf,
		gz:     gz,
		header: make([]byte, 0, codec.HeaderSize),
		config: config,
		logger: config.logger().With().Str("path", config.FilePath).Logger(),
	}
	w.logger.Debug().Msg("opened container for writing")
	return w, nil
}

// Write validates and frames one record. It accepts *codec.DeviceApps,
// codec.DeviceApps, any other codec.Message, or a map[string]any in the
// shape accepted by codec.FromMap. It returns the number of uncompressed
// bytes appended (header plus payload). A rejected record leaves the
// stream untouched.
func (w *Writer) Write(rec any) (int, error) {
	if w.closed {
		return 0, &codec.StreamIOError{Op: "write", Path: w.config.FilePath, Err: os.ErrClosed}
	}
	if w.err != nil {
		return 0, w.err
	}

	msg, err := ToMessage(rec)
	if err != nil {
		return 0, err
	}

	h, payload, err := codec.EncodeFrame(msg)
	if err != nil {
		return 0, err
	}

	w.header = codec.AppendHeader(w.header[:0], h)
	if _, err := w.gz.Write(w.header); err != nil {
		w.err = &codec.StreamIOError{Op: "write header", Path: w.config.FilePath, Err: err}
		return 0, w.err
	}
	if _, err := w.gz.Write(payload); err != nil {
		w.err = &codec.StreamIOError{Op: "write payload", Path: w.config.FilePath, Err: err}
		return 0, w.err
	}

	n := len(w.header) + len(payload)
	w.written += int64(n)
	w.records++
	return n, nil
}

// Written returns the uncompressed bytes written so far.
func (w *Writer) Written() int64 {
	return w.written
}

// Records returns the number of records written so far.
func (w *Writer) Records() int {
	return w.records
}

// Path returns the file path
func (w *Writer) Path() string {
	return w.config.FilePath
}

// Close finishes the gzip stream, flushes and closes the file. It is safe
// to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.gz.Close()
	if err == nil {
		err = w.buf.Flush()
	}
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}

	w.logger.Debug().
		Int("records", w.records).
		Int64("bytes", w.written).
		Msg("closed container")

	if err != nil {
		return &codec.StreamIOError{Op: "close", Path: w.config.FilePath, Err: err}
	}
	return nil
}

// ToMessage converts a caller-supplied record into a codec.Message.
func ToMessage(rec any) (codec.Message, error) {
	switch v := rec.(type) {
	case *codec.DeviceApps:
		if v == nil {
			return nil, errNotRecord()
		}
		return v, nil
	case codec.DeviceApps:
		return &v, nil
	case map[string]any:
		if v == nil {
			return nil, errNotRecord()
		}
		m, err := codec.FromMap(v)
		if err != nil {
			return nil, err
		}
		return m, nil
	case codec.Message:
		return v, nil
	default:
		return nil, errNotRecord()
	}
}

func errNotRecord() error {
	return &codec.ValidationError{Field: "record", Reason: "record should be an object"}
}

// WriteFile writes every record produced by src to path and returns the
// uncompressed bytes written. The first invalid record stops the loop; the
// records before it stay in the file and their byte count is returned with
// the error. The file is closed on every path.
func WriteFile(path string, src Source, opts ...Option) (int64, error) {
	config := WriterConfig{FilePath: path}
	for _, opt := range opts {
		opt(&config.Options)
	}

	w, err := NewWriter(config)
	if err != nil {
		return 0, err
	}

	for src.Next() {
		if _, err := w.Write(src.Record()); err != nil {
			if closeErr := w.Close(); closeErr != nil {
				w.logger.Warn().Err(closeErr).Msg("close after failed write")
			}
			w.logger.Debug().Err(err).Int("record", w.Records()).Msg("write aborted")
			return w.Written(), err
		}
	}

	if err := src.Err(); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			w.logger.Warn().Err(closeErr).Msg("close after source error")
		}
		return w.Written(), err
	}

	if err := w.Close(); err != nil {
		return w.Written(), err
	}
	return w.Written(), nil
}
