package board

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/departureboard/internal/common/logger"
)

const shutdownTimeout = 5 * time.Second

// WebServer serves a handler until its context is cancelled.
type WebServer struct {
	handler http.Handler
	logger  logger.Logger
}

func NewWebServer(handler http.Handler, log logger.Logger) *WebServer {
	if log == nil {
		log = logger.Nop()
	}
	return &WebServer{handler: handler, logger: log}
}

// Serve listens on port and shuts down gracefully when ctx is done.
func (w *WebServer) Serve(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}
	return w.serve(ctx, listener)
}

func (w *WebServer) serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	w.logger.Info("HTTP server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
		w.logger.Info("Initiating graceful shutdown of HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("Error during graceful shutdown", "error", err)
		}
		return nil
	}
}
