package tsv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ssargent/devapps/pkg/codec"
	"github.com/ssargent/devapps/pkg/stream"
)

// Options controls a conversion
type Options struct {
	MaxErrorRate  float64  // 0 selects DefaultMaxErrorRate
	DeviceTypes   []string // Empty selects DefaultDeviceTypes
	DotRename     bool     // Rename a successfully converted input to .<name>
	Workers       int      // Files converted concurrently by ConvertAll; 0 means 1
	StreamOptions []stream.Option
	Logger        *zerolog.Logger
}

func (o Options) maxErrorRate() float64 {
	if o.MaxErrorRate <= 0 {
		return DefaultMaxErrorRate
	}
	return o.MaxErrorRate
}

func (o Options) deviceTypes() map[string]bool {
	types := o.DeviceTypes
	if len(types) == 0 {
		types = DefaultDeviceTypes
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return allowed
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// Convert reads the gzip TSV file src and writes every usable line to the
// framed file dst. Bad lines are counted in Stats and skipped. When the
// error rate exceeds the configured maximum, dst is still complete but
// ErrHighErrorRate is returned and src is never renamed.
func Convert(src, dst string, opts Options) (Stats, error) {
	var stats Stats
	log := opts.logger().With().Str("src", src).Str("dst", dst).Logger()

	file, err := os.Open(src)
	if err != nil {
		return stats, &codec.StreamIOError{Op: "open", Path: src, Err: err}
	}
	defer file.Close()

	gz, err := gzip.NewReader(bufio.NewReader(file))
	if err != nil {
		return stats, &codec.StreamIOError{Op: "open gzip", Path: src, Err: err}
	}
	defer gz.Close()

	w, err := stream.NewWriter(stream.WriterConfig{FilePath: dst, Options: streamOptions(opts.StreamOptions)})
	if err != nil {
		return stats, err
	}

	allowed := opts.deviceTypes()
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Processed++

		rec, err := ParseLine(line)
		if err == nil && !allowed[rec.Device.Type] {
			err = fmt.Errorf("%w: %s", ErrUnknownDeviceType, rec.Device.Type)
		}
		if err == nil {
			_, err = w.Write(rec)
			if err != nil && !errors.Is(err, codec.ErrValidation) && !errors.Is(err, codec.ErrPayloadTooLarge) {
				_ = w.Close()
				return stats, err
			}
		}
		if err != nil {
			stats.Errors++
			log.Debug().Err(err).Int("line", stats.Processed).Msg("skipping line")
		}
	}

	if err := scanner.Err(); err != nil {
		_ = w.Close()
		return stats, &codec.StreamIOError{Op: "read", Path: src, Err: err}
	}
	if err := w.Close(); err != nil {
		return stats, err
	}

	rate := stats.ErrorRate()
	if rate > opts.maxErrorRate() {
		log.Error().Float64("rate", rate).Float64("max", opts.maxErrorRate()).Msg("high error rate, failed conversion")
		return stats, fmt.Errorf("%w (%v > %v)", ErrHighErrorRate, rate, opts.maxErrorRate())
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("errors", stats.Errors).
		Float64("rate", rate).
		Msg("acceptable error rate, successful conversion")

	if opts.DotRename {
		if err := DotRename(src); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func streamOptions(opts []stream.Option) stream.Options {
	var o stream.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Result describes one file converted by ConvertAll
type Result struct {
	Src   string
	Dst   string
	Stats Stats
	Err   error
}

// OutputName maps an input file name to its framed output name
func OutputName(src string) string {
	base := filepath.Base(src)
	for _, ext := range []string{".tsv.gz", ".gz", ".tsv"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	return base + ".pb.gz"
}

// ConvertAll converts every file matching pattern into outDir, in sorted
// order, running up to opts.Workers conversions at once. Files whose name
// starts with "." are skipped, so inputs already handled by DotRename are
// not converted again. A failed file does not stop the others; per-file
// errors are reported in the results.
func ConvertAll(ctx context.Context, pattern, outDir string, opts Options) ([]Result, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	paths := matches[:0]
	for _, path := range matches {
		if !strings.HasPrefix(filepath.Base(path), ".") {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	results := make([]Result, len(paths))
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(outDir, OutputName(path))
			stats, err := Convert(path, dst, opts)
			results[i] = Result{Src: path, Dst: dst, Stats: stats, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// DotRename renames path to .<name> in the same directory
func DotRename(path string) error {
	dir, name := filepath.Split(path)
	if err := os.Rename(path, filepath.Join(dir, "."+name)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
