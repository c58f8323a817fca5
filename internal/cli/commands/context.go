// Package commands implements the leaptrust subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leaptrust/internal/config"
)

// ConfigKey stores the loaded configuration in the command context.
type ConfigKey struct{}

// LoggerKey stores the logger in the command context.
type LoggerKey struct{}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(ConfigKey{}).(*config.Config); ok {
		return cfg
	}
	cfg, _ := config.Load("", nil)
	return cfg
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
