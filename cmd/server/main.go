package main

import (
	"log/slog"
	"os"

	"go-image-playground/internal/app"
	"go-image-playground/internal/logger"
)

func main() {
	logger.Init()

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
