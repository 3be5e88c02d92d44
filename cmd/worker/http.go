package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/config"
	"github.com/septivank/submetering-worker/internal/mq"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	RabbitMQ string `json:"rabbitmq"`
}

// startHTTPServer exposes /metrics, /healthz and the stored photos
func startHTTPServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	pool *pgxpool.Pool,
	conn *mq.Connection,
	logger *zap.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "ok", RabbitMQ: "ok"}
		status := http.StatusOK
		if err := pool.Ping(ctx); err != nil {
			resp.Status, resp.Database = "degraded", err.Error()
			status = http.StatusServiceUnavailable
		}
		if !conn.Healthy() {
			resp.Status, resp.RabbitMQ = "degraded", "connection closed"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	})
	if prefix := strings.TrimSuffix(cfg.Photos.BaseURL, "/"); strings.HasPrefix(prefix, "/") {
		mux.Handle(prefix+"/", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Photos.Dir))))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
