package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	exportProfile       string
	exportOut           string
	exportPassphraseEnv string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Decrypt and write back the originally imported raw file",
	Long: `Recovers the byte-exact raw export that was encrypted at import time.
Useful for re-importing elsewhere or verifying the stored sha256.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := passphraseFromEnv(exportPassphraseEnv)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		raw, err := env.Store.RawBlob(cmd.Context(), exportProfile, passphrase)
		if err != nil {
			return err
		}

		if err := os.WriteFile(exportOut, raw, 0o600); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(raw), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProfile, "profile", "", "profile id (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (required)")
	exportCmd.Flags().StringVar(&exportPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	_ = exportCmd.MarkFlagRequired("profile")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
