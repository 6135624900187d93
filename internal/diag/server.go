package diag

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Connected bool   `json:"connected"`
	Syncing   bool   `json:"syncing"`
	Pending   int    `json:"pending"`
	Failed    int    `json:"failed"`
}

// StatusFunc reports the live client status for /health.
type StatusFunc func() HealthStatus

// Handler returns a mux serving /metrics, /health and /healthz.
func Handler(m *Metrics, status StatusFunc) http.Handler {
	started := time.Now()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	health := func(w http.ResponseWriter, r *http.Request) {
		h := HealthStatus{}
		if status != nil {
			h = status()
		}
		h.Status = "healthy"
		h.Uptime = time.Since(started).Round(time.Second).String()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(h); err != nil {
			log.Printf("diag: encoding health: %v", err)
		}
	}
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/healthz", health)

	return mux
}

// Serve runs the diagnostics listener on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *Metrics, status StatusFunc) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(m, status),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("diagnostics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("diagnostics server error: %v", err)
	}
}
