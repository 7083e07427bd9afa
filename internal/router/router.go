package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"

	"guild-metrics/internal/endpoints"
	"guild-metrics/internal/observability"
	"guild-metrics/internal/util"
)

type Handlers struct {
	Charts   *endpoints.Charts
	Events   *endpoints.Events
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

func NewRouter(h Handlers, webSlogger *util.MetricsLogger) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, h)

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(webSlogger))
	r.Use(observability.HTTPMetricsMiddleware(h.Metrics))
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

	return r
}

func addRoutes(r *mux.Router, h Handlers) {
	r.HandleFunc("/healthz", endpoints.HealthHandler).Methods("GET")
	if h.Gatherer != nil {
		r.Handle("/debug/metrics", observability.Handler(h.Gatherer)).Methods("GET")
	}

	r.HandleFunc("/guilds/{guild}/{metric}", h.Charts.GetChartHandler).Methods("GET")

	events := r.PathPrefix("/events").Subrouter()
	events.HandleFunc("/ready", h.Events.ReadyHandler).Methods("POST")
	events.HandleFunc("/message", h.Events.MessageHandler).Methods("POST")
	events.HandleFunc("/leave", h.Events.LeaveHandler).Methods("POST")
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until ctx is done, then drains in-flight requests for up to
// shutdownTimeout.
func Run(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, webSlogger *util.MetricsLogger) error {
	errCh := make(chan error, 1)
	go func() {
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Listening on", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")
	if err := gracefulShutdown(server, shutdownTimeout); err != nil {
		webSlogger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error:", err)
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}
