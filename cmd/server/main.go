package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emirg23/multi-BotChat/internal/app"
	"github.com/emirg23/multi-BotChat/internal/config"
	"github.com/emirg23/multi-BotChat/internal/db"
	"github.com/emirg23/multi-BotChat/internal/httpapi"
	"github.com/emirg23/multi-BotChat/internal/httpapi/handlers"
	"github.com/emirg23/multi-BotChat/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	gdb := db.Connect(cfg.DBDSN)

	a, err := app.New(cfg, gdb, logger)
	if err != nil {
		log.Fatalf("app init: %v", err)
	}
	defer a.Close()

	// async sync is optional: without a broker POST /sync/async answers 503
	var queue handlers.SyncQueue
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, async sync disabled: %v", err)
	} else {
		defer pub.Close()
		queue = pub
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(a, queue),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening addr=%s docstore=%s ai_provider=%s", cfg.HTTPAddr, cfg.DocStore, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
