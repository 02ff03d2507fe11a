package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/logger"
	"github.com/ssargent/devapps/pkg/storage"
)

func openStore(cmd *cobra.Command) (*storage.Storage, error) {
	cfg := configFrom(cmd)
	dir := cfg.StoreDir
	if d, _ := cmd.Flags().GetString("store-dir"); d != "" {
		dir = d
	}
	return storage.Open(dir, storage.WithLogger(logger.New("storage")))
}

func newLoadCmd() *cobra.Command {
	loadCmd := &cobra.Command{
		Use:   "load <file.pb.gz>...",
		Short: "Load container files into the record store",
		Long: `Decode container files and store each record under its device key
(type:id). A later record for the same device replaces the earlier one.

Example:
  devapps load data/files/*.pb.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			cfg := configFrom(cmd)
			for _, path := range args {
				stats, err := store.Load(cmd.Context(), path, streamOptions(cfg, "load")...)
				if err != nil {
					return err
				}
				cmd.Printf("Loaded %d records from %s\n", stats.Records, path)
			}
			return nil
		},
	}

	loadCmd.Flags().String("store-dir", "", "Record store directory (default is the configured store dir)")
	return loadCmd
}
