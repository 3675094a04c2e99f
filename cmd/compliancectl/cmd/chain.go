package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/hashchain"
)

var (
	chainFile    string
	chainCountry string
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Operaciones sobre cadenas de hashes exportadas",
}

var chainVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recalcula y verifica una cadena exportada",
	Long: `Lee un array JSON de entradas de la cadena (en orden de emisión) y
recalcula cada hash con la política de numeración del país.

  compliancectl chain verify -f chain.json --country FR

Sale con error si la cadena está rota.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []entity.ChainEntry
		if err := readJSONFile(chainFile, &entries); err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}
		cfg, found := store.Resolve(chainCountry)
		if !found {
			printVerbose(cmd, "país %s sin configuración, se usa DEFAULT\n", chainCountry)
		}
		res, err := hashchain.Validate(entries, cfg.Numbering)
		if err != nil {
			return err
		}
		if err := printOutput(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return res.Err()
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps <sequence>...",
	Short: "Lista los consecutivos que faltan entre el menor y el mayor",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seqs := make([]int64, 0, len(args))
		for _, a := range args {
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("consecutivo inválido: %q", a)
			}
			seqs = append(seqs, n)
		}
		gaps := hashchain.DetectGaps(seqs)
		if gaps == nil {
			gaps = []int64{}
		}
		return printOutput(cmd.OutOrStdout(), map[string]any{"issued": len(seqs), "gaps": gaps})
	},
}

func init() {
	rootCmd.AddCommand(chainCmd, gapsCmd)
	chainCmd.AddCommand(chainVerifyCmd)
	chainVerifyCmd.Flags().StringVarP(&chainFile, "file", "f", "", "Fichero JSON con las entradas ('-' para stdin)")
	chainVerifyCmd.Flags().StringVar(&chainCountry, "country", "DEFAULT", "País cuya política de numeración aplica")
	_ = chainVerifyCmd.MarkFlagRequired("file")
}

func printVerbose(cmd *cobra.Command, format string, args ...any) {
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), format, args...)
	}
}
