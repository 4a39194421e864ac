package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	_ "ppt2video/docs"
	"ppt2video/internal/artifact"
	"ppt2video/internal/config"
	"ppt2video/internal/convert"
	"ppt2video/internal/quota"
	"ppt2video/internal/repository/memory"
	"ppt2video/internal/repository/postgresql"
	"ppt2video/internal/service"
	"ppt2video/internal/tracker"
	httptransport "ppt2video/internal/transport/http"
	"ppt2video/internal/worker"
)

// recordStore is everything the API side needs from a record store
// implementation.
type recordStore interface {
	service.JobRepository
	quota.Counter
}

// @title ppt2video API
// @version 1.0
// @description Asynchronous document-to-video conversion: submit a presentation, poll the job status, download the narrated video.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		})
		if err != nil {
			log.Fatalf("sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	store, err := artifact.New(ctx, cfg.Artifacts)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}
	conv := convert.NewSimulator(cfg.Convert.SimStepDelay)

	var (
		repo  recordStore
		queue service.Queue
		trk   tracker.Tracker
	)

	switch cfg.Store.Backend {
	case "postgres":
		if err := postgresql.Migrate(cfg.Store.DSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		pool, err := postgresql.NewPool(ctx, cfg.Store.DSN)
		if err != nil {
			log.Fatalf("pg: %v", err)
		}
		defer pool.Close()
		repo = postgresql.NewJobRepository(pool)

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		queue = service.NewRedisPriorityQueue(
			rdb,
			cfg.Queue.ProcessingKey+":map",
			service.Lane{QueueKey: cfg.Queue.QueueKey + ":low", ProcessingKey: cfg.Queue.ProcessingKey + ":low"},
			service.Lane{QueueKey: cfg.Queue.QueueKey + ":normal", ProcessingKey: cfg.Queue.ProcessingKey + ":normal"},
			service.Lane{QueueKey: cfg.Queue.QueueKey + ":high", ProcessingKey: cfg.Queue.ProcessingKey + ":high"},
		)
		trk = tracker.NewRedis(rdb, cfg.Tracker.TTL)

	case "memory":
		// single-process dev mode: in-memory store plus an embedded
		// worker pool, no postgres or redis needed
		memRepo := memory.NewJobRepository()
		repo = memRepo
		queue = service.NewMemoryQueue()
		trk = tracker.NewMemory()

		processor := worker.NewProcessor(memRepo, trk, store, conv, worker.Config{
			Timeout:      cfg.Convert.Timeout,
			MaxAttempts:  cfg.Convert.MaxAttempts,
			RetryBackoff: cfg.Convert.RetryBackoff,
			WorkDir:      cfg.Convert.WorkDir,
			KeepTemp:     cfg.Convert.KeepTemp,
			ProgressRate: cfg.Convert.ProgressRate,
		})
		go worker.NewPool(queue, processor, cfg.Queue.Workers).Run(ctx)
		go worker.NewSweeper(memRepo, store, trk,
			cfg.Retention.MaxAge, cfg.Retention.SweepInterval, cfg.Retention.SweepBatch).Run(ctx)
		log.Printf("[api] embedded worker enabled (memory backend)")

	default:
		log.Fatalf("unknown store backend %q", cfg.Store.Backend)
	}

	gate := quota.NewGate(cfg.Quota.RoleLimits, cfg.Quota.DefaultLimit, repo)
	svc := service.NewJobService(repo, queue, trk, store, gate, conv)
	handler := httptransport.NewHandler(svc, cfg.Artifacts.MaxUploadMB<<20)

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     httptransport.Routes(handler),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout defaults to 0: downloads and websocket streams
		// are long-lived
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("[api] listening addr=%s store=%s artifacts=%s",
			cfg.Server.Addr(), cfg.Store.Backend, cfg.Artifacts.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[api] shutdown error=%v", err)
	}
	log.Println("api stopped")
}
