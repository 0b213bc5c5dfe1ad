package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/southpark/southpark/internal/allocator"
	"github.com/southpark/southpark/internal/audit"
	"github.com/southpark/southpark/internal/config"
	"github.com/southpark/southpark/internal/distance"
	"github.com/southpark/southpark/internal/engine"
	"github.com/southpark/southpark/internal/httpserver"
	"github.com/southpark/southpark/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	distances, err := loadDistances(cfg.DistanceCSV)
	if err != nil {
		log.Fatalf("load distances: %v", err)
	}

	publisher, archiver := buildAudit(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("close audit publisher: %v", err)
		}
	}()

	service := allocator.New(
		store.NewPGStore(db),
		distances,
		rankingConfig(cfg),
		cfg.SolverTimeout,
		publisher,
		archiver,
	)
	server := httpserver.New(service)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server,
	}

	go func() {
		log.Printf("Allocation service listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("allocation server error: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

func rankingConfig(cfg config.Config) engine.RankingConfig {
	return engine.RankingConfig{
		WestHallIDs:         cfg.WestHallIDs,
		WestLotID:           cfg.WestLotID,
		HeavyLotID:          cfg.HeavyLotID,
		HeavyTruckThreshold: cfg.HeavyTruckThreshold,
		UsePriorityScore:    cfg.UsePriorityScore,
	}
}

func loadDistances(csvPath string) (*distance.Table, error) {
	if csvPath == "" {
		return distance.Default(), nil
	}
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return distance.ReadCSV(f)
}

func buildAudit(cfg config.Config) (audit.Publisher, audit.Archiver) {
	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := audit.NewKafkaPublisher(audit.KafkaPublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka publisher: %v", err)
		}
		publisher = p
	}
	var archiver audit.Archiver = audit.NopArchiver{}
	if cfg.S3Bucket != "" {
		a, err := audit.NewS3Archiver(context.Background(), cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("s3 archiver: %v", err)
		}
		archiver = a
	}
	return publisher, archiver
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("allocation graceful shutdown: %v", err)
	}
}
