package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/application/dto"
)

var factsFile string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Construye el contexto de una operación y resuelve sus reglas",
	Long: `Lee los hechos de la operación (empresa, cliente, líneas) en JSON y
muestra el contexto derivado y las reglas aplicables.

  compliancectl resolve -f facts.json
  cat facts.json | compliancectl resolve -f -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var facts compliance.Facts
		if err := readJSONFile(factsFile, &facts); err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}
		res, err := newEngine(cmd, store).Resolve(cmd.Context(), facts)
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), res)
	},
}

var vatCmd = &cobra.Command{
	Use:   "vat",
	Short: "Calcula el desglose de IVA de una operación",
	Long: `Igual que resolve pero el JSON lleva además "lines" (quantity, unitPrice,
rate o rateCode) y se devuelven los totales por tipo.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in dto.VATRequest
		if err := readJSONFile(factsFile, &in); err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}
		res, err := newEngine(cmd, store).CalculateVAT(cmd.Context(), in.Facts, in.Lines)
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd, vatCmd)
	for _, c := range []*cobra.Command{resolveCmd, vatCmd} {
		c.Flags().StringVarP(&factsFile, "file", "f", "", "Fichero JSON con los hechos ('-' para stdin)")
		_ = c.MarkFlagRequired("file")
	}
}
