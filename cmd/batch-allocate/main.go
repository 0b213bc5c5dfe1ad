// Command batch-allocate runs one allocation pass over the database and
// exits. It is the cron-friendly twin of the HTTP service: the same
// greedy batch by default, the exact optimizer with -exact.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/southpark/southpark/internal/allocator"
	"github.com/southpark/southpark/internal/audit"
	"github.com/southpark/southpark/internal/config"
	"github.com/southpark/southpark/internal/distance"
	"github.com/southpark/southpark/internal/engine"
	"github.com/southpark/southpark/internal/models"
	"github.com/southpark/southpark/internal/store"
)

func main() {
	exact := flag.Bool("exact", false, "run the exact optimizer instead of the greedy batch")
	eventID := flag.Int("event", 0, "allocate a single event by id (greedy only)")
	flag.Parse()

	if *exact && *eventID != 0 {
		log.Fatal("-exact optimizes the whole dataset; it cannot be combined with -event")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
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
		engine.RankingConfig{
			WestHallIDs:         cfg.WestHallIDs,
			WestLotID:           cfg.WestLotID,
			HeavyLotID:          cfg.HeavyLotID,
			HeavyTruckThreshold: cfg.HeavyTruckThreshold,
			UsePriorityScore:    cfg.UsePriorityScore,
		},
		cfg.SolverTimeout,
		publisher,
		archiver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *exact:
		summary, result, err := service.Optimize(ctx)
		if err != nil {
			log.Fatalf("optimize: %v", err)
		}
		log.Printf("run %s: optimized %d events into %d rows, total distance %.1f, %d nodes",
			summary.RunID, len(summary.Events), summary.Rows, result.TotalDistance, result.Nodes)
	case *eventID > 0:
		summary, err := service.AllocateEvent(ctx, *eventID)
		if err != nil {
			log.Fatalf("allocate event %d: %v", *eventID, err)
		}
		logGreedy(summary)
	default:
		summary, err := service.AllocateAll(ctx)
		if err != nil {
			log.Fatalf("allocate: %v", err)
		}
		logGreedy(summary)
	}
}

func logGreedy(summary allocator.RunSummary) {
	log.Printf("run %s: allocated %d events into %d rows", summary.RunID, len(summary.Events), summary.Rows)
	for _, ev := range summary.Events {
		for phase, status := range ev.Statuses {
			if status != models.StatusOK {
				log.Printf("event %d (%s) %s: %s", ev.EventID, ev.Name, phase, status)
			}
		}
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
