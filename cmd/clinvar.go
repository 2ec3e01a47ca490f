package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/variantlab/genotype-cli/internal/clinvar"
)

var (
	clinvarProfile       string
	clinvarPassphraseEnv string
)

var clinvarCmd = &cobra.Command{
	Use:   "clinvar",
	Short: "Manage the clinical variant cache",
}

var clinvarBuildCmd = &cobra.Command{
	Use:   "build <dump-file>",
	Short: "Build the lookup cache from a clinical reference dump",
	Long: `Streams the (possibly gzipped) reference dump once, keeping only rows
for rsIDs present in the given profile's committed genotype. The new cache
version is swapped in atomically; lookups against the previous version keep
working while the build runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		passphrase, err := passphraseFromEnv(clinvarPassphraseEnv)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		relevant, err := env.Store.RSIDs(ctx, clinvarProfile, passphrase)
		if err != nil {
			return err
		}

		dump, err := clinvar.OpenDump(args[0])
		if err != nil {
			return err
		}
		defer dump.Close()

		result, err := env.Cache.Build(ctx, dump, args[0], relevant)
		if err != nil {
			return err
		}

		fmt.Printf("built cache version %s: %d variants kept, %d rows skipped\n",
			result.VersionID, result.Kept, result.Skipped)
		return nil
	},
}

var clinvarMatchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List every cached clinical annotation for markers the profile carries",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := passphraseFromEnv(clinvarPassphraseEnv)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		matches, err := env.Query.ClinVarMatches(cmd.Context(), clinvarProfile, passphrase)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("no cached annotations for this profile's markers")
			return nil
		}

		rsids := make([]string, 0, len(matches))
		for rsid := range matches {
			rsids = append(rsids, rsid)
		}
		sort.Strings(rsids)
		for _, rsid := range rsids {
			v := matches[rsid]
			conflict := ""
			if v.Conflicts {
				conflict = " [conflicting interpretations]"
			}
			fmt.Printf("%s\t%s\t%s%s\n", rsid, v.ClinicalSignificance, v.ReviewStatus, conflict)
		}
		return nil
	},
}

var clinvarStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current cache version metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		info, err := env.Cache.Current(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("version:  %s\n", info.ID)
		fmt.Printf("built at: %s\n", info.BuiltAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("source:   %s\n", info.SourceName)
		fmt.Printf("variants: %d (skipped %d malformed rows)\n", info.Kept, info.Skipped)
		return nil
	},
}

func init() {
	clinvarBuildCmd.Flags().StringVar(&clinvarProfile, "profile", "", "profile whose genotype bounds the cache (required)")
	clinvarBuildCmd.Flags().StringVar(&clinvarPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	_ = clinvarBuildCmd.MarkFlagRequired("profile")
	clinvarMatchesCmd.Flags().StringVar(&clinvarProfile, "profile", "", "profile id (required)")
	clinvarMatchesCmd.Flags().StringVar(&clinvarPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	_ = clinvarMatchesCmd.MarkFlagRequired("profile")
	clinvarCmd.AddCommand(clinvarBuildCmd, clinvarMatchesCmd, clinvarStatusCmd)
	rootCmd.AddCommand(clinvarCmd)
}
