package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cadenza-bot/cadenza/internal/bot"

	// Blank imports register the bot's feature modules.
	_ "github.com/cadenza-bot/cadenza/internal/modules/music_player"
)

// version is stamped at build time:
// go build -ldflags "-X main.version=1.0.0" ./cmd/cadenza
var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("starting cadenza", "version", version)

	cfg, err := bot.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	b := bot.NewBot(cfg)
	b.LoadModules()
	if err := b.Start(); err != nil {
		slog.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	// Run until interrupted, then let the modules drain: the music player
	// stops its event pipeline and closes the Lavalink client on Stop.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down cadenza")
	if err := b.Stop(); err != nil {
		slog.Error("failed to shut down cleanly", "error", err)
		os.Exit(1)
	}
}
