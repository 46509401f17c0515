package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/replyloop/replyloop/pipeline"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server that receives dispatch and decision callbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			deps, err := depsFromViper(ctx, log)
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			mux.HandleFunc("/hooks/dispatch", handleDispatch(deps, log))
			mux.HandleFunc("/hooks/decision", handleDecision(deps, log))

			srv := &http.Server{
				Addr:              viper.GetString("server.addr"),
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("server_listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				log.Info("server_shutting_down")
				shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}

func handleDispatch(deps *pipeline.Deps, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, http.StatusMethodNotAllowed, "POST only")
			return
		}
		reqID := uuid.NewString()
		var t pipeline.Trigger
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&t); err != nil {
			httpError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		log.Info("dispatch_received", "request_id", reqID, "thread", t.ThreadID, "actions", len(t.Actions))

		results := deps.Run(r.Context(), t)
		writeJSON(w, http.StatusOK, map[string]any{
			"requestId": reqID,
			"results":   results,
		})
	}
}

func handleDecision(deps *pipeline.Deps, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpError(w, http.StatusMethodNotAllowed, "POST only")
			return
		}
		reqID := uuid.NewString()
		var req pipeline.DecisionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		log.Info("decision_received", "request_id", reqID, "thread", req.ThreadID, "decision", req.Decision)

		resp, err := deps.Decide(r.Context(), req)
		if err != nil {
			log.Error("decision_error", "request_id", reqID, "error", err.Error())
			httpError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
