package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"dailytopic/internal/application"
	"dailytopic/internal/logging"
)

func main() {
	logging.Init()

	ctx := context.Background()

	app, err := application.New(ctx)
	if err != nil {
		slog.Error("起動に失敗", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	report, err := app.Pipeline.Run(ctx)
	if err != nil {
		slog.Error("処理に失敗", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Processing completed: %d articles, %d summaries, $%.4f\n",
		report.TotalArticles, len(report.Summaries), report.Usage.CostUSD)
}
