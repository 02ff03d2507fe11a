package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/devapps/pkg/jsonl"
)

func newGetCmd() *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Get the stored record of a device",
		Long: `Get the stored record of a device from the record store.

Example:
  devapps get idfa e7e1a50c0ec2747ca56cd9e1558c0d7c`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(args[0], args[1])
			if err != nil {
				return err
			}
			return jsonl.NewEncoder(cmd.OutOrStdout()).Encode(rec)
		},
	}

	getCmd.Flags().String("store-dir", "", "Record store directory (default is the configured store dir)")
	return getCmd
}
