package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/signature"
)

var (
	certPath     string
	certPassword string
	sigValue     string
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Verificación de firmas de documentos y de hashes de la cadena",
}

var verifyXMLCmd = &cobra.Command{
	Use:   "verify-xml <file>",
	Short: "Comprueba el DigestValue de un XML firmado tras C14N",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("leer %s: %w", args[0], err)
		}
		if err := signature.VerifyXMLDigest(raw); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: digest válido\n", args[0])
		return nil
	},
}

var verifyHashCmd = &cobra.Command{
	Use:   "verify-hash <hash>",
	Short: "Verifica la firma (Base64) de un hash de la cadena con un certificado PEM o .p12",
	Long: `  compliancectl signature verify-hash 3f9a... --cert emisor.p12 --password secreto --sig MEUCIQ...

Sin --cert se usa DIAN_CERT_PATH / DIAN_CERT_PASSWORD.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, password := certPath, certPassword
		if path == "" {
			path, password = os.Getenv("DIAN_CERT_PATH"), os.Getenv("DIAN_CERT_PASSWORD")
		}
		if path == "" {
			return fmt.Errorf("certificado requerido (--cert o DIAN_CERT_PATH)")
		}
		cert, err := signature.LoadCertificate(path, password)
		if err != nil {
			return err
		}
		printVerbose(cmd, "certificado: %s\n", cert.Subject.String())
		if err := signature.VerifyHash(cert, []byte(args[0]), sigValue); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "firma válida")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signatureCmd)
	signatureCmd.AddCommand(verifyXMLCmd, verifyHashCmd)
	verifyHashCmd.Flags().StringVar(&certPath, "cert", "", "Certificado .pem o .p12")
	verifyHashCmd.Flags().StringVar(&certPassword, "password", "", "Contraseña del .p12")
	verifyHashCmd.Flags().StringVar(&sigValue, "sig", "", "Firma en Base64")
	_ = verifyHashCmd.MarkFlagRequired("sig")
}
