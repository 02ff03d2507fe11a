package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/jsonl"
	"github.com/ssargent/devapps/pkg/stream"
)

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <file.pb.gz>",
		Short: "Print the records of a container file as JSON lines",
		Long: `Decode every frame of a container file and print one JSON record per
line. Records are streamed, so output stops at the first damaged frame
and the command fails with the decode error.

Example:
  devapps read apps.pb.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			config := stream.ReaderConfig{FilePath: args[0]}
			for _, opt := range streamOptions(cfg, "read") {
				opt(&config.Options)
			}

			r, err := stream.NewReader(config)
			if err != nil {
				return err
			}
			defer r.Close()

			enc := jsonl.NewEncoder(cmd.OutOrStdout())
			for {
				rec, err := r.Next()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
		},
	}
}
