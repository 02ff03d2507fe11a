package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/codec"
	"github.com/ssargent/devapps/pkg/jsonl"
	"github.com/ssargent/devapps/pkg/logger"
	"github.com/ssargent/devapps/pkg/stream"
)

func newWriteCmd() *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write <output.pb.gz> [input.jsonl]",
		Short: "Write JSON lines records to a container file",
		Long: `Read one JSON record per line and write them as framed DeviceApps
records. Input is read from stdin when no input file is given or it is "-".

The first invalid record stops the write; the records before it stay in
the output file.

Example:
  devapps write apps.pb.gz apps.jsonl
  cat apps.jsonl | devapps write apps.pb.gz`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if cmd.Flags().Changed("level") {
				cfg.Stream.CompressionLevel, _ = cmd.Flags().GetInt("level")
			}

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			src := jsonl.NewSource(in)
			written, err := stream.WriteFile(args[0], src, streamOptions(cfg, "write")...)
			if err != nil {
				logger.Error().Err(err).Int("line", src.Line()).Int64("bytes", written).Msg("write failed")
				if errors.Is(err, codec.ErrValidation) {
					return fmt.Errorf("line %d: %w", src.Line(), err)
				}
				return err
			}

			cmd.Printf("Wrote %d bytes to %s\n", written, args[0])
			return nil
		},
	}

	writeCmd.Flags().Int("level", 0, "gzip compression level (-2 to 9, 0 for default)")
	return writeCmd
}
