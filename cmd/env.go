package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/variantlab/genotype-cli/internal/clinvar"
	"github.com/variantlab/genotype-cli/internal/kb"
	"github.com/variantlab/genotype-cli/internal/query"
	"github.com/variantlab/genotype-cli/internal/store"
)

// appEnv bundles the opened engine components for a command invocation.
type appEnv struct {
	Store *store.Store
	Cache *clinvar.Cache
	KB    *kb.KnowledgeBase
	Query *query.Service
}

func initEnv(ctx context.Context) (*appEnv, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, eris.Wrap(err, "create data dir")
	}

	st, err := store.New(cfg.DatabasePath(), cfg.BlobDir())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	cache, err := clinvar.Open(cfg.CachePath())
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := cache.Migrate(ctx); err != nil {
		st.Close()
		cache.Close()
		return nil, err
	}

	knowledge, err := loadKB()
	if err != nil {
		st.Close()
		cache.Close()
		return nil, err
	}

	return &appEnv{
		Store: st,
		Cache: cache,
		KB:    knowledge,
		Query: query.NewService(st, cache, knowledge),
	}, nil
}

func loadKB() (*kb.KnowledgeBase, error) {
	if cfg.KB.Dir != "" {
		return kb.LoadDir(cfg.KB.Dir)
	}
	return kb.LoadEmbedded()
}

func (e *appEnv) Close() {
	e.Store.Close()
	e.Cache.Close()
}

// passphraseFromEnv reads the import passphrase from the named environment
// variable. Passphrases never travel as command arguments, which would leak
// into shell history and process listings.
func passphraseFromEnv(envName string) ([]byte, error) {
	pass := os.Getenv(envName)
	if pass == "" {
		return nil, eris.Errorf("passphrase environment variable %s is empty or unset", envName)
	}
	return []byte(pass), nil
}
