package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/krobus00/futures-feed-service/internal/config"
)

const (
	defaultHTTPAddr          = ":8080"
	defaultReadTimeout       = 5 * time.Second
	defaultReadHeaderTimeout = 2 * time.Second
	defaultWriteTimeout      = 15 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
)

// CollectorStatus is what the status endpoint reports about a running
// collector.
type CollectorStatus interface {
	ConnectionState() string
	SubscriptionCount() int
}

// StatusServer exposes liveness plus a small operational snapshot of the
// collector, standing in for the menu-driven monitoring tooling.
type StatusServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	startedAt       time.Time
}

func NewStatusServer(instanceID string, status CollectorStatus) *StatusServer {
	s := &StatusServer{
		shutdownTimeout: defaultShutdownTimeout,
		startedAt:       time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/statusz", func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"service":     config.ServiceName,
			"version":     config.ServiceVersion,
			"instance_id": instanceID,
			"started_at":  s.startedAt,
			"uptime_s":    int64(time.Since(s.startedAt).Seconds()),
		}
		if status != nil {
			payload["connection"] = status.ConnectionState()
			payload["subscriptions"] = status.SubscriptionCount()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logrus.Errorf("write statusz response: %v", err)
		}
	})

	s.server = &http.Server{
		Addr:              resolveHTTPAddr(),
		Handler:           httpRecoveryMiddleware(mux),
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	return s
}

func (s *StatusServer) Start() error {
	logrus.WithField("addr", s.server.Addr).Info("status server starting")
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	shutdownCtx := ctx
	if shutdownCtx == nil {
		innerCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		shutdownCtx = innerCtx
	}

	return s.server.Shutdown(shutdownCtx)
}

func httpRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logrus.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  recovered,
				}).Error("panic recovered in http handler")

				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func resolveHTTPAddr() string {
	if config.Env != nil {
		if port := strings.TrimSpace(config.Env.Port["http"]); port != "" {
			if strings.HasPrefix(port, ":") {
				return port
			}

			return ":" + port
		}
	}

	return defaultHTTPAddr
}
