package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pylens/internal/shared/util"
)

// Server exposes /metrics and /health on a dedicated listener while watch
// mode runs.
type Server struct {
	addr   string
	log    *slog.Logger
	server *http.Server
	start  time.Time
}

type healthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	HeapAllocMB   uint64  `json:"heap_alloc_mb"`
}

// Serve starts the observability listener in the background and returns a
// handle for graceful shutdown.
func Serve(addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{addr: addr, log: log, start: time.Now()}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	log.Info("observability server starting", "addr", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server failed", "error", err)
		}
	}()

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(s.start).Round(time.Second).Seconds(),
		HeapAllocMB:   util.HeapAllocMB(),
	})
}

func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
