package main

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/variantlab/genotype-cli/internal/importer"
	"github.com/variantlab/genotype-cli/internal/ingest"
	"github.com/variantlab/genotype-cli/internal/model"
)

var (
	batchConcurrency   int
	batchPassphraseEnv string
)

// batchEntry is one line of a batch manifest: which file goes into which
// profile. Profiles are distinct by contract; the engine serializes imports
// per profile, so duplicate profile ids in a manifest would just have the
// later entry rejected.
type batchEntry struct {
	Profile string `yaml:"profile"`
	File    string `yaml:"file"`
	Member  string `yaml:"member"`
	Format  string `yaml:"format"`
	Replace bool   `yaml:"replace"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <manifest.yaml>",
	Short: "Import raw exports for several profiles in parallel",
	Long: `Reads a YAML manifest of {profile, file, member, format, replace}
entries and runs one import transaction per profile. Imports for different
profiles run concurrently; a failure in one entry never aborts the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		passphrase, err := passphraseFromEnv(batchPassphraseEnv)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read batch manifest")
		}
		var entries []batchEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return eris.Wrap(err, "parse batch manifest")
		}
		if len(entries) == 0 {
			zap.L().Info("batch manifest is empty")
			return nil
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		orch := importer.New(env.Store, cfg.Import.BatchSize)

		zap.L().Info("processing batch",
			zap.Int("entries", len(entries)),
			zap.Int("concurrency", batchConcurrency),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)

		var succeeded, failed atomic.Int64

		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				log := zap.L().With(
					zap.String("profile", entry.Profile),
					zap.String("file", entry.File),
				)

				format, err := ingest.ParseFormat(entry.Format)
				if err != nil {
					failed.Add(1)
					log.Error("bad manifest entry", zap.Error(err))
					return nil // don't abort batch on individual failure
				}

				result := orch.Run(gctx, importer.Request{
					ProfileID:  entry.Profile,
					Path:       entry.File,
					Member:     entry.Member,
					Format:     format,
					Passphrase: passphrase,
					Replace:    entry.Replace,
				})
				if result.State != model.StateCompleted {
					failed.Add(1)
					log.Error("import failed",
						zap.String("state", string(result.State)),
						zap.Error(result.Err),
					)
					return nil
				}

				succeeded.Add(1)
				log.Info("import complete",
					zap.Int("records", result.Summary.RecordCount),
					zap.Float64("call_rate", result.Summary.QC.CallRate),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "max imports in flight")
	batchCmd.Flags().StringVar(&batchPassphraseEnv, "passphrase-env", "GENOTYPE_PASSPHRASE", "environment variable holding the encryption passphrase")
	rootCmd.AddCommand(batchCmd)
}
