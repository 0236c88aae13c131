package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/blaulichtkarte/blaulicht-cli/internal/store"
)

// statusPayload is the /status response.
type statusPayload struct {
	LastCycle *store.Health          `json:"last_cycle,omitempty"`
	PollState map[string]SourceState `json:"poll_state"`
	QueueLen  int                    `json:"queue_len"`
}

// Handler builds the daemon's local status router.
func (l *Loop) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		queued, err := l.queue.Len()
		if err != nil {
			zap.L().Warn("live: queue len failed", zap.Error(err))
		}
		payload := statusPayload{
			LastCycle: l.LastHealth(),
			PollState: l.tracker.States(),
			QueueLen:  queued,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			zap.L().Warn("live: status encode failed", zap.Error(err))
		}
	})

	return r
}

// ServeStatus runs the status endpoint until the context is cancelled.
// Listen errors are logged, not fatal: the poller matters more than the
// endpoint.
func (l *Loop) ServeStatus(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           l.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		zap.L().Info("live: status endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Warn("live: status endpoint failed", zap.Error(err))
		}
	}()
}
