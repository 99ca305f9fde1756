package recommend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/evreco/core/logger"
)

// Server runs the API until its context is canceled.
type Server struct {
	Addr    string
	Handler http.Handler
	Log     logger.Logger
}

// Serve listens on Addr and shuts down gracefully when ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.OrNop(s.Log).Infof("api listening on %s", s.Addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// String names the service for the supervisor.
func (s *Server) String() string { return "api " + s.Addr }
