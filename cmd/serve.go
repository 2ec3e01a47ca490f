package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/variantlab/genotype-cli/internal/model"
	"github.com/variantlab/genotype-cli/internal/query"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the insight query surface over HTTP",
	Long: `Serves the read-only query surface (insights, variant lookup, QC
reports) as JSON for a local UI or report layer. The passphrase travels in
the X-Passphrase header per request and is never stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", port),
			Handler: newRouter(env.Query),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting query server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(svc *query.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"X-Passphrase"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/profiles/{profileID}", func(r chi.Router) {
		r.Get("/qc", func(w http.ResponseWriter, req *http.Request) {
			report, err := svc.GetQCReport(req.Context(), chi.URLParam(req, "profileID"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Get("/insights", func(w http.ResponseWriter, req *http.Request) {
			passphrase, ok := passphraseHeader(w, req)
			if !ok {
				return
			}
			results, err := svc.ListInsights(req.Context(), chi.URLParam(req, "profileID"), passphrase)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, results)
		})

		r.Get("/variants/{rsid}", func(w http.ResponseWriter, req *http.Request) {
			passphrase, ok := passphraseHeader(w, req)
			if !ok {
				return
			}
			detail, err := svc.LookupVariant(req.Context(),
				chi.URLParam(req, "profileID"), chi.URLParam(req, "rsid"), passphrase)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, detail)
		})
	})

	return r
}

func passphraseHeader(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	pass := req.Header.Get("X-Passphrase")
	if pass == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "X-Passphrase header required"})
		return nil, false
	}
	return []byte(pass), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrAuthentication):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrNoGenotypeData), errors.Is(err, model.ErrNoCacheBuilt):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
