package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/variantlab/genotype-cli/internal/importer"
	"github.com/variantlab/genotype-cli/internal/ingest"
	"github.com/variantlab/genotype-cli/internal/model"
)

var (
	importProfile       string
	importMember        string
	importFormat        string
	importReplace       bool
	importPassphraseEnv string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a raw genotype export for a profile",
	Long: `Runs one atomic import transaction: streaming parse + QC in a single
pass, encryption of the original raw bytes, and an all-or-nothing commit.
Ctrl-C during the parse pass cancels cleanly and leaves the store untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, err := ingest.ParseFormat(importFormat)
		if err != nil {
			return err
		}
		passphrase, err := passphraseFromEnv(importPassphraseEnv)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		orch := importer.New(env.Store, cfg.Import.BatchSize)
		result := orch.Run(ctx, importer.Request{
			ProfileID:  importProfile,
			Path:       args[0],
			Member:     importMember,
			Format:     format,
			Passphrase: passphrase,
			Replace:    importReplace,
		})

		switch result.State {
		case model.StateCompleted:
			printSummary(result.Summary)
			return nil
		case model.StateCancelled:
			fmt.Println("import cancelled; no data was written")
			return nil
		case model.StatePending:
			var ambiguous *model.AmbiguousSourceError
			if errors.As(result.Err, &ambiguous) {
				fmt.Printf("archive contains multiple data files; re-run with --member set to one of:\n  %s\n",
					strings.Join(ambiguous.Members, "\n  "))
			}
			return result.Err
		default:
			return result.Err
		}
	},
}

func printSummary(sum *model.ImportSummary) {
	fmt.Printf("import %s complete\n", sum.ImportID)
	fmt.Printf("  records:        %d\n", sum.RecordCount)
	fmt.Printf("  total rows:     %d\n", sum.QC.TotalRows)
	fmt.Printf("  malformed rows: %d\n", sum.QC.MalformedRows)
	fmt.Printf("  duplicate rows: %d\n", sum.QC.DuplicateRows)
	fmt.Printf("  call rate:      %.2f%%\n", sum.QC.CallRate*100)
	fmt.Printf("  x/y check:      %s\n", sum.QC.XYConsistency)
	fmt.Printf("  sha256:         %s\n", sum.FileSHA256)
}

func init() {
	importCmd.Flags().StringVar(&importProfile, "profile", "", "profile id (required)")
	importCmd.Flags().StringVar(&importMember, "member", "", "archive member to import when the zip holds several data files")
	importCmd.Flags().StringVar(&importFormat, "format", "tabular4", "raw export layout: tabular4 or tabular5")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "supersede previously committed data for this profile")
	importCmd.Flags().StringVar(&importPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	_ = importCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(importCmd)
}
