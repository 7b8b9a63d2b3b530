package testutil

import (
	"io"
	"log/slog"
)

// QuietLogger returns a logger that only emits warnings and above.
// Use it in integration tests where full debug output is noise.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
