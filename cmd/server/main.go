package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"dailytopic/internal/application"
	"dailytopic/internal/handlers"
	"dailytopic/internal/logging"
)

func main() {
	var (
		schedule = flag.String("schedule", "", "Cron expression for scheduled runs (e.g. \"0 7 * * *\"); empty disables the scheduler")
	)
	flag.Parse()

	logging.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.New(ctx)
	if err != nil {
		slog.Error("起動に失敗", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := handlers.NewServer(app.Config, app.Pipeline, app.Stats)
	router := server.SetupRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", app.Config.Host, app.Config.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a full run happens inside one request
		IdleTimeout:  60 * time.Second,
	}

	// Optional scheduled runs alongside the HTTP trigger.
	var scheduler *cron.Cron
	if *schedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(*schedule, func() {
			if _, err := app.Pipeline.Run(ctx); err != nil {
				slog.Error("スケジュール実行に失敗", "error", err)
			}
		})
		if err != nil {
			slog.Error("スケジュール登録に失敗", "schedule", *schedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		slog.Info("スケジューラ起動", "schedule", *schedule)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("サーバ起動", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("サーバ起動に失敗", "error", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	slog.Info("シャットダウン開始")

	cancel()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("シャットダウンに失敗", "error", err)
	}

	slog.Info("サーバ停止")
}
