// internal/bot/shutdown.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 30 * time.Second

// CloseFunc allows using a function as an io.Closer.
type CloseFunc func() error

func (f CloseFunc) Close() error {
	return f()
}

// ShutdownHandler closes registered components in reverse registration order.
type ShutdownHandler struct {
	logger   *zap.Logger
	timeout  time.Duration
	mu       sync.Mutex
	services []namedService
	done     bool
}

type namedService struct {
	name   string
	closer io.Closer
}

// NewShutdownHandler creates a handler; zero timeout means 30s.
func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &ShutdownHandler{
		logger:  logger.Named("shutdown"),
		timeout: timeout,
	}
}

// ErrShutdownStarted is returned by Add once Shutdown has run.
var ErrShutdownStarted = errors.New("shutdown already started")

// Add registers a component for shutdown. After Shutdown nothing would close
// it, so the caller gets ErrShutdownStarted and owns the cleanup.
func (sh *ShutdownHandler) Add(name string, closer io.Closer) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.done {
		return fmt.Errorf("%s: %w", name, ErrShutdownStarted)
	}
	sh.services = append(sh.services, namedService{name: name, closer: closer})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
	return nil
}

// AddFunc registers a shutdown function.
func (sh *ShutdownHandler) AddFunc(name string, fn func() error) error {
	return sh.Add(name, CloseFunc(fn))
}

// Closed reports whether Shutdown has run.
func (sh *ShutdownHandler) Closed() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.done
}

// Wait blocks until SIGINT/SIGTERM or ctx is done, then shuts everything down.
func (sh *ShutdownHandler) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	sh.logger.Info("Shutdown requested", zap.NamedError("cause", context.Cause(sigCtx)))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sh.timeout)
	defer cancel()
	return sh.Shutdown(shutdownCtx)
}

// Shutdown closes services one by one, last registered first, so a component
// never outlives what it depends on. Services still running when ctx expires
// are reported and abandoned. Calling Shutdown again is a no-op.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	if sh.done {
		sh.mu.Unlock()
		return nil
	}
	sh.done = true
	services := make([]namedService, len(sh.services))
	copy(services, sh.services)
	sh.mu.Unlock()

	sh.logger.Info("Starting graceful shutdown", zap.Int("services", len(services)))

	var errs error
	for i := len(services) - 1; i >= 0; i-- {
		if err := sh.closeOne(ctx, services[i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		sh.logger.Error("Shutdown completed with errors",
			zap.Int("errorCount", len(multierr.Errors(errs))),
			zap.Error(errs))
		return errs
	}
	sh.logger.Info("Graceful shutdown completed successfully")
	return nil
}

func (sh *ShutdownHandler) closeOne(ctx context.Context, s namedService) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: shutdown timeout", s.name)
	}

	done := make(chan error, 1)
	go func() {
		sh.logger.Debug("Shutting down service", zap.String("service", s.name))
		done <- s.closer.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			sh.logger.Error("Failed to shutdown service", zap.String("service", s.name), zap.Error(err))
			return fmt.Errorf("%s: %w", s.name, err)
		}
		sh.logger.Debug("Service shutdown complete", zap.String("service", s.name))
		return nil
	case <-ctx.Done():
		sh.logger.Error("Shutdown timeout for service", zap.String("service", s.name))
		return fmt.Errorf("%s: shutdown timeout", s.name)
	}
}
