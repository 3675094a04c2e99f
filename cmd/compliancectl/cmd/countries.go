package cmd

import (
	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries [code]",
	Short: "Lista los países configurados o muestra uno",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return printOutput(cmd.OutOrStdout(), store.Codes())
		}
		cfg, err := newEngine(cmd, store).Country(args[0])
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(countriesCmd)
}
