package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"docrag/internal/bootstrap"
)

// Serve runs the HTTP API until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, app *bootstrap.App) error {
	server := &http.Server{
		Addr:              app.Config.HTTPAddr(),
		Handler:           NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
