package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const defaultRequestTimeout = 5 * time.Second

type HTTPServer struct {
	httpServer *http.Server
}

// NewHTTPServer returns the server answering 503 to requests
// running longer than requestTimeout.
func NewHTTPServer(
	addr string, handler http.Handler, requestTimeout time.Duration,
) HTTPServer {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	handler = http.TimeoutHandler(handler, requestTimeout, "unavailable")
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: requestTimeout,
		IdleTimeout:       2 * requestTimeout,
	}
	return HTTPServer{s}
}

func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	defer stopFn()

	log.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.Error("unexpected servers shutdown", "err", err)
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
	}
	log.Info("http server is closed")
}
