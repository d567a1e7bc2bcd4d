package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/niksmo/club-stock/config"
	"github.com/niksmo/club-stock/internal/app"
	"github.com/niksmo/club-stock/pkg/sigctx"
)

const closeTimeout = 5 * time.Second

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	cfg.Print()

	ledger := mustStart(sigCtx, cfg)
	ledger.Run(closeApp)

	<-sigCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	ledger.Close(ctx)
}

// mustStart exits when a dependency is unavailable at startup.
func mustStart(ctx context.Context, cfg config.Config) (ledger *app.App) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("failed to start", "err", r)
			os.Exit(1)
		}
	}()
	return app.New(ctx, cfg)
}
