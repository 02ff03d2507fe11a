package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/ssargent/devapps/pkg/codec"
)

// gzipHeaderSize is the minimum size of a gzip member header.
const gzipHeaderSize = 10

// Reader provides sequential access to the frames of a container file
type Reader struct {
	file     *os.File
	gz       *gzip.Reader
	registry *codec.Registry
	config   ReaderConfig
	logger   zerolog.Logger
	offset   int64 // Uncompressed offset of the next frame
	frames   int
}

// NewReader opens a container file for reading.
func NewReader(config ReaderConfig) (*Reader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, &codec.StreamIOError{Op: "open", Path: config.FilePath, Err: err}
	}

	gz, err := gzip.NewReader(bufio.NewReaderSize(file, config.bufferSize()))
	if err != nil {
		size := int64(-1)
		if stat, statErr := file.Stat(); statErr == nil {
			size = stat.Size()
		}
		_ = file.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &codec.TruncatedFrameError{Part: "gzip header", Want: gzipHeaderSize, Got: int(size)}
		}
		return nil, &codec.StreamIOError{Op: "open gzip", Path: config.FilePath, Err: err}
	}

	r := &Reader{
		file:     file,
		gz:       gz,
		registry: config.registry(),
		config:   config,
		logger:   config.logger().With().Str("path", config.FilePath).Logger(),
	}
	r.logger.Debug().Msg("opened container for reading")
	return r, nil
}

// NextMessage reads and decodes the next frame. It returns io.EOF once the
// stream ends cleanly on a frame boundary.
func (r *Reader) NextMessage() (codec.Message, error) {
	h, err := codec.ReadHeader(r.gz)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.frameErr(err)
	}

	if h.Magic != codec.Magic {
		return nil, r.frameErr(fmt.Errorf("%w: %#08x", codec.ErrBadMagic, h.Magic))
	}

	decode, ok := r.registry.Lookup(h.Type)
	if !ok {
		return nil, r.frameErr(fmt.Errorf("%w: %d", codec.ErrUnknownMessageType, uint16(h.Type)))
	}

	payload := make([]byte, h.Length)
	n, err := io.ReadFull(r.gz, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, r.frameErr(&codec.TruncatedFrameError{Part: "payload", Want: int(h.Length), Got: n})
		}
		return nil, r.frameErr(&codec.StreamIOError{Op: "read payload", Path: r.config.FilePath, Err: err})
	}

	msg, err := decode(payload)
	if err != nil {
		return nil, r.frameErr(err)
	}

	r.offset += int64(codec.HeaderSize + len(payload))
	r.frames++
	return msg, nil
}

// Next reads the next DeviceApps record.
func (r *Reader) Next() (*codec.DeviceApps, error) {
	msg, err := r.NextMessage()
	if err != nil {
		return nil, err
	}
	rec, ok := msg.(*codec.DeviceApps)
	if !ok {
		return nil, r.frameErr(fmt.Errorf("%w: %d", codec.ErrUnknownMessageType, uint16(msg.Type())))
	}
	return rec, nil
}

func (r *Reader) frameErr(err error) error {
	return fmt.Errorf("frame %d at offset %d: %w", r.frames, r.offset, err)
}

// Offset returns the uncompressed offset of the next frame
func (r *Reader) Offset() int64 {
	return r.offset
}

// Frames returns the number of frames decoded so far
func (r *Reader) Frames() int {
	return r.frames
}

// Iterator returns a streaming iterator for records
func (r *Reader) Iterator() RecordIterator {
	return &recordIterator{reader: r}
}

// Close closes the reader and its file
func (r *Reader) Close() error {
	gzErr := r.gz.Close()
	err := r.file.Close()
	r.logger.Debug().Int("frames", r.frames).Int64("bytes", r.offset).Msg("closed container")
	if err == nil {
		err = gzErr
	}
	if err != nil {
		return &codec.StreamIOError{Op: "close", Path: r.config.FilePath, Err: err}
	}
	return nil
}

// recordIterator implements RecordIterator for streaming access
type recordIterator struct {
	reader *Reader
	record *codec.DeviceApps
	err    error
}

func (it *recordIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.record, it.err = it.reader.Next()
	return it.err == nil
}

func (it *recordIterator) Record() *codec.DeviceApps {
	return it.record
}

// Err returns the error that stopped iteration, or nil after a clean end of stream.
func (it *recordIterator) Err() error {
	if it.err == io.EOF {
		return nil
	}
	return it.err
}

func (it *recordIterator) Close() error {
	// The underlying reader is owned by the caller
	return nil
}

// ReadFile decodes every record in path, in file order. Any failure aborts
// the whole read, including a failure to close the file: the records
// decoded before it are discarded and only the error is returned.
func ReadFile(path string, opts ...Option) ([]*codec.DeviceApps, error) {
	config := ReaderConfig{FilePath: path}
	for _, opt := range opts {
		opt(&config.Options)
	}

	r, err := NewReader(config)
	if err != nil {
		return nil, err
	}
	return readAll(r)
}

// readAll drains r and closes it. The first error wins.
func readAll(r *Reader) ([]*codec.DeviceApps, error) {
	records := make([]*codec.DeviceApps, 0)
	it := r.Iterator()
	for it.Next() {
		records = append(records, it.Record())
	}
	err := it.Err()
	if closeErr := r.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}
