package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"mixroom/internal/playlist"
	"mixroom/internal/realtime"
)

func main() {
	ctx := context.Background()

	port := getenv("PORT", "3002")
	redisURL := getenv("REDIS_URL", "redis://redis:6379")
	databaseURL := getenv("DATABASE_URL", "")
	allowedOrigin := getenv("ALLOWED_ORIGIN", "")

	// Redis
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("mixroom: invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	// Postgres is optional; without it the queue is ephemeral.
	var repo playlist.Repository
	if databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			log.Fatalf("mixroom: connect database: %v", err)
		}
		defer pool.Close()
		if err := playlist.AutoMigrate(ctx, pool); err != nil {
			log.Fatalf("mixroom: migrate: %v", err)
		}
		repo = playlist.NewPGRepository(pool)
	} else {
		log.Printf("mixroom: DATABASE_URL not set, queue is ephemeral")
	}

	queue := playlist.NewQueue(repo)
	if err := queue.Load(ctx); err != nil {
		log.Fatalf("mixroom: load queue: %v", err)
	}

	// Hub + realtime server; new sessions get the current snapshot at once.
	hub := realtime.NewHub(func() ([]byte, error) {
		return playlist.SnapshotFrame(queue)
	})
	rtSrv := realtime.NewServer(hub, rdb, ctx, allowedOrigin)

	go hub.Run()
	go rtSrv.RunRedisSubscriber()

	qSrv := playlist.NewServer(queue, rdb)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	r.Mount("/api", qSrv.Router())
	r.Mount("/realtime", rtSrv.Router())

	log.Printf("mixroom listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("mixroom: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
