package observability

import (
	"log/slog"
	"os"
)

// InitLogger installs a JSON slog handler on stdout as the process default.
func InitLogger(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
