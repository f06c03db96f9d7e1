package main

import (
	"context"
	"log"
	"time"

	"github.com/orionai/orion/internal/config"
	"github.com/orionai/orion/internal/db"
	"github.com/orionai/orion/internal/httpapi"
	"github.com/orionai/orion/internal/store/rabbitmq"
	"github.com/orionai/orion/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rds.Ping(ctx); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	cancel()

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit connect: %v", err)
	}
	defer rabbit.Close()

	r := httpapi.NewRouter(gdb, cfg, rds, rabbit)

	log.Printf("server listening on %s", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
