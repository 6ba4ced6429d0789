package obs

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const serviceName = "communityeats"

// NewLogger builds the process logger: tinted human-readable output for local
// work, JSON elsewhere. Dev environments log at debug so the display-name
// repair and broker fallback paths are visible.
func NewLogger(env string) *slog.Logger {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "dev" || env == "local" {
		handler := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.TimeOnly,
		})
		return slog.New(handler).With("service", serviceName)
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	return slog.New(handler).With("service", serviceName, "env", env)
}
