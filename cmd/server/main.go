package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/sumanthd032/collabtext/broker"
	"github.com/sumanthd032/collabtext/config"
	"github.com/sumanthd032/collabtext/store"
	"github.com/sumanthd032/collabtext/transport"
)

// snapshotInterval is how often cmd/server durably flattens every open
// document, independent of the per-message append log.
const snapshotInterval = 30 * time.Second

func main() {
	cfg := config.LoadServer()
	ctx := context.Background()

	rdb, err := broker.Dial(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("Connected to Redis successfully.")

	pg, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("Unable to migrate database: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	srv := transport.NewServer(rdb, pg)
	go srv.RunSnapshotLoop(ctx, snapshotInterval)

	log.Printf("CollabText sync server starting on %s...", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
