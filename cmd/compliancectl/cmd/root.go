package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jhoicas/Cumplimiento-api/internal/application/compliance"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/countries"
)

var (
	version = "1.0.0"

	// Flags globales
	verbose       bool
	outputFormat  string
	countriesFile string
)

var rootCmd = &cobra.Command{
	Use:   "compliancectl",
	Short: "Herramienta de operación del motor de cumplimiento fiscal",
	Long: `compliancectl ejecuta el motor de decisión y las verificaciones de la cadena
sin levantar la API. No consulta VIES ni plataformas externas.

Ejemplos:
  # Países configurados
  compliancectl countries

  # Reglas de una operación
  compliancectl resolve -f facts.json

  # Verificar una cadena exportada con la política francesa
  compliancectl chain verify -f chain.json --country FR

  # Huecos en una lista de consecutivos
  compliancectl gaps 1 2 5`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute punto de entrada del binario.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Salida detallada en stderr")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Formato de salida (json, yaml)")
	rootCmd.PersistentFlags().StringVar(&countriesFile, "countries", "", "YAML que sobreescribe la tabla de países (env: COMPLIANCE_COUNTRIES_FILE)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if countriesFile == "" {
		countriesFile = os.Getenv("COMPLIANCE_COUNTRIES_FILE")
	}
}

func cliLogger(cmd *cobra.Command) zerolog.Logger {
	if !verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
}

func loadStore() (*countries.Store, error) {
	store, err := countries.Load(countriesFile)
	if err != nil {
		return nil, fmt.Errorf("tabla de países: %w", err)
	}
	return store, nil
}

// newEngine motor sin validador externo: los NIF-IVA bien formados se dan por válidos.
func newEngine(cmd *cobra.Command, store *countries.Store) *compliance.Service {
	log := cliLogger(cmd)
	checker := compliance.NewTaxIDChecker(nil, nil, 0, nil, log)
	return compliance.NewService(store,
		compliance.NewContextBuilder(store, checker, log),
		compliance.NewRuleResolver(store, log),
		log)
}

func printOutput(w io.Writer, v any) error {
	switch outputFormat {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("formato de salida desconocido: %s", outputFormat)
	}
}

func readJSONFile(path string, v any) error {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("leer %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s no es JSON válido: %w", path, err)
	}
	return nil
}
