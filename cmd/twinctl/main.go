package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("twinctl error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
