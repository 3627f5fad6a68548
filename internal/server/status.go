package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/matgreaves/run"
)

// NewStatusHandler serves metrics at /metrics and a liveness probe at /health.
func NewStatusHandler(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/health", handleHealth)
	return mux
}

// handleHealth returns server health status.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// StatusRunner serves h on addr until its context is cancelled.
func StatusRunner(addr string, h http.Handler) run.Runner {
	srv := &http.Server{Addr: addr, Handler: h}
	return serveUntilDone(func() error {
		log.Printf("metrics listening on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	}, srv.Shutdown)
}
