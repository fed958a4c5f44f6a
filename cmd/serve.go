package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/validator-cli/internal/batch"
	"github.com/sells-group/validator-cli/internal/model"
	"github.com/sells-group/validator-cli/internal/store"
)

var servePort int

// maxBatchUpload caps the multipart upload size at 20 MiB.
const maxBatchUpload = 20 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Pipeline, env.Store, env.Registry),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

// newRouter builds the API routes. Split out from the command so handler
// tests can drive it with httptest.
func newRouter(p batch.Validator, st store.Store, registry *prometheus.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/validate", handleValidate(p))
		r.Post("/validate/batch", handleValidateBatch(p))
		r.Get("/providers", handleProviders(st))
	})

	return r
}

func handleValidate(p batch.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var vr model.ValidationRequest
		if err := json.NewDecoder(req.Body).Decode(&vr); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if vr.PhoneNumber == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phone_number is required"})
			return
		}

		resp := p.Validate(req.Context(), vr)
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleValidateBatch(p batch.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseMultipartForm(maxBatchUpload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
			return
		}
		file, header, err := req.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file is required"})
			return
		}
		defer file.Close()

		rows, err := batch.ReadFile(header.Filename, req.FormValue("charset"), file)
		if err != nil {
			zap.L().Warn("batch upload rejected", zap.String("file", header.Filename), zap.Error(err))
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable input file"})
			return
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no phone numbers found"})
			return
		}

		results := batch.Process(req.Context(), p, rows)

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="validation_results.csv"`)
		if err := batch.WriteResults(w, results); err != nil {
			zap.L().Error("write batch results failed", zap.Error(err))
		}
	}
}

func handleProviders(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		health, err := st.ListProviderHealth(req.Context())
		if err != nil {
			zap.L().Error("list provider health failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if health == nil {
			health = []model.ProviderHealth{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"providers": health})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
