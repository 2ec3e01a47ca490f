package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	lookupProfile       string
	lookupPassphraseEnv string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <rsid>",
	Short: "Look up one marker: genotype, clinical annotation and insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := passphraseFromEnv(lookupPassphraseEnv)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		detail, err := env.Query.LookupVariant(cmd.Context(), lookupProfile, args[0], passphrase)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(detail, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupProfile, "profile", "", "profile id (required)")
	lookupCmd.Flags().StringVar(&lookupPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	_ = lookupCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(lookupCmd)
}
