package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	insightsProfile       string
	insightsPassphraseEnv string
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Evaluate curated knowledge modules against a profile's genotype",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := passphraseFromEnv(insightsPassphraseEnv)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Query.ListInsights(cmd.Context(), insightsProfile, passphrase)
		if err != nil {
			return err
		}

		fmt.Printf("knowledge base %s, %d modules\n\n", env.KB.Version, len(results))
		for _, r := range results {
			fmt.Printf("%s (%s, %s) grade %s\n", r.ModuleID, r.Gene, r.RSID, r.EvidenceGrade)
			if r.Interpretation != nil {
				fmt.Printf("  genotype %s: %s\n", r.ObservedGenotype, *r.Interpretation)
			} else {
				fmt.Println("  no interpretation (marker absent, no-call, or genotype not curated)")
			}
			fmt.Printf("  limitations: %s\n\n", r.Limitations)
		}
		return nil
	},
}

func init() {
	insightsCmd.Flags().StringVar(&insightsProfile, "profile", "", "profile id (required)")
	insightsCmd.Flags().StringVar(&insightsPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	_ = insightsCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(insightsCmd)
}
