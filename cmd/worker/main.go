package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/emirg23/multi-BotChat/internal/app"
	"github.com/emirg23/multi-BotChat/internal/config"
	"github.com/emirg23/multi-BotChat/internal/db"
	"github.com/emirg23/multi-BotChat/internal/session"
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.Declare(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d docstore=%s", cfg.RabbitQueue, concurrency, cfg.DocStore)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				handleDelivery(ctx, workerID, a.Sessions, a.Jobs, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// handleDelivery acks a pushed job and dead-letters everything else.
func handleDelivery(ctx context.Context, workerID int, sessions *session.Manager, jobs *session.JobRepo, d amqp.Delivery) {
	m, err := rabbitmq.DecodeSyncJob(d.Body)
	if err != nil {
		log.Printf("worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := sessions.RunSyncJob(ctx, jobs, m.JobID); err != nil {
		log.Printf("worker=%d job %s account=%s failed cost=%s err=%v", workerID, m.JobID, m.Account, time.Since(start), err)
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
	}
	if cost := time.Since(start); cost > 2*time.Second {
		log.Printf("job_timing job=%s account=%s total=%s", m.JobID, m.Account, cost)
	}
}
