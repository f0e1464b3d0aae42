package logger

import (
	"log/slog"
	"os"
)

// NewSlogLogger создает и настраивает новый JSON логгер сервиса оформления заказов
func NewSlogLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	return slog.New(handler).With(slog.String("service", "jewelry_checkout"))
}
