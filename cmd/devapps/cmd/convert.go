package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/logger"
	"github.com/ssargent/devapps/pkg/tsv"
)

// errConversionFailed is returned when at least one file failed
var errConversionFailed = errors.New("conversion failed")

func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert TSV app install logs into container files",
		Long: `Convert gzip TSV files (dev_type, dev_id, lat, lon, apps) into framed
container files, one output per input. Bad lines are skipped and counted;
a file whose error rate exceeds the maximum fails.

Example:
  devapps convert --pattern "data/*.tsv.gz" --out ./data/files --dot-rename`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			pattern, _ := cmd.Flags().GetString("pattern")
			outDir, _ := cmd.Flags().GetString("out")
			workers, _ := cmd.Flags().GetInt("workers")

			if outDir == "" {
				outDir = cfg.DataDir
			}
			if cmd.Flags().Changed("max-error-rate") {
				cfg.Convert.MaxErrorRate, _ = cmd.Flags().GetFloat64("max-error-rate")
			}
			if cmd.Flags().Changed("dot-rename") {
				cfg.Convert.DotRename, _ = cmd.Flags().GetBool("dot-rename")
			}

			log := logger.New("convert")
			results, err := tsv.ConvertAll(cmd.Context(), pattern, outDir, tsv.Options{
				MaxErrorRate:  cfg.Convert.MaxErrorRate,
				DotRename:     cfg.Convert.DotRename,
				Workers:       workers,
				StreamOptions: streamOptions(cfg, "convert"),
				Logger:        &log,
			})
			if err != nil {
				return err
			}
			if len(results) == 0 {
				cmd.Printf("No files match %s\n", pattern)
				return nil
			}

			var total tsv.Stats
			failed := 0
			for _, r := range results {
				total.Add(r.Stats)
				if r.Err != nil {
					failed++
					cmd.Printf("FAIL %s: %v\n", r.Src, r.Err)
					continue
				}
				cmd.Printf("OK   %s -> %s (%d lines, %d errors)\n", r.Src, r.Dst, r.Stats.Processed, r.Stats.Errors)
			}
			cmd.Printf("Processed %d lines, error rate %.4f\n", total.Processed, total.ErrorRate())

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d files", errConversionFailed, failed, len(results))
			}
			return nil
		},
	}

	convertCmd.Flags().String("pattern", "data/*.tsv.gz", "Glob of input files")
	convertCmd.Flags().String("out", "", "Output directory (default is the configured data dir)")
	convertCmd.Flags().Int("workers", 4, "Files converted concurrently")
	convertCmd.Flags().Float64("max-error-rate", tsv.DefaultMaxErrorRate, "Highest tolerated share of bad lines")
	convertCmd.Flags().Bool("dot-rename", false, "Rename converted inputs to .<name>")
	return convertCmd
}
