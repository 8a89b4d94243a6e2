// Package health runs zenlogd's admin HTTP surface: liveness, Prometheus
// scraping, and an operator-triggered sink reopen, alongside a background
// sampler that keeps process-level gauges current.
package health

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"zenlogd/internal/metrics"
	"zenlogd/internal/runtime"
)

// DefaultSampleInterval is how often the process sampler refreshes the RSS
// and open-file-descriptor gauges.
const DefaultSampleInterval = 15 * time.Second

// EventPoster is the narrow interface health needs from the control
// mapper: the ability to post a control event without blocking the HTTP
// handler goroutine.
type EventPoster interface {
	Post(event runtime.ControlEvent) bool
}

// Server is zenlogd's admin HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
	stopSample chan struct{}
}

// NewServer builds a Server listening on addr. Posting ControlEvents
// through poster is how /reopen reaches the running pipelines; poster may
// be nil, in which case /reopen responds 503.
func NewServer(addr string, poster EventPoster, logger *logrus.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/reopen", reopenHandler(poster, logger)).Methods(http.MethodPost)

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		logger:     logger,
		stopSample: make(chan struct{}),
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func reopenHandler(poster EventPoster, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if poster == nil {
			http.Error(w, "reopen not wired", http.StatusServiceUnavailable)
			return
		}
		poster.Post(runtime.ReopenOutputs{})
		logger.Info("reopen triggered via admin endpoint")
		w.WriteHeader(http.StatusAccepted)
	}
}

// Start begins serving HTTP in the background and starts the process
// sampler. Errors from the listener, other than a clean Close, are logged
// rather than returned since the caller has already moved on.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("admin server error")
		}
	}()
	go s.sampleProcessStats(DefaultSampleInterval)
}

// sampleProcessStats periodically refreshes the RSS and open-FD gauges
// until stopSample is closed.
func (s *Server) sampleProcessStats(interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.WithError(err).Warn("process sampler disabled: could not resolve self")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if mem, err := proc.MemoryInfo(); err == nil {
				metrics.ProcessRSSBytes.Set(float64(mem.RSS))
			}
			if fds, err := proc.NumFDs(); err == nil {
				metrics.ProcessOpenFDs.Set(float64(fds))
			}
		case <-s.stopSample:
			return
		}
	}
}

// Close stops the sampler and shuts down the HTTP server.
func (s *Server) Close() error {
	close(s.stopSample)
	return s.httpServer.Close()
}
