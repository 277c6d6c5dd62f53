package observability

import (
	"net/http"
	"time"
)

// HealthHandler answers every request with 200 and the body "OK".
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// NewMux returns a mux serving /health and, when withMetrics is set, /metrics.
func NewMux(withMetrics bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", HealthHandler())
	if withMetrics {
		mux.Handle("/metrics", Handler())
	}
	return mux
}

// NewServer returns an HTTP server for the liveness and metrics endpoints.
func NewServer(addr string, withMetrics bool) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewMux(withMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
