package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"forum-watch/internal/observability"
)

// GracefulShutdown возвращает context, отменяемый по SIGINT/SIGTERM.
// Текущий опрос прерывается, ожидание следующего завершается сразу.
func GracefulShutdown(parent context.Context, logger *observability.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	// Канал для сигналов ОС
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
