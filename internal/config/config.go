package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the allocation service needs from the
// environment. The ranking constants (west halls, default lots) are
// deployment tuning, not code.
type Config struct {
	Addr        string
	DatabaseURL string

	// DistanceCSV optionally points at a survey file overriding the
	// embedded distance matrix.
	DistanceCSV string

	// WestHallIDs is the hall group served by the west default lot.
	WestHallIDs []int
	// WestLotID is pinned to the front of the ranking for car demand of
	// events occupying west halls.
	WestLotID int
	// HeavyLotID is tried first for truck demand at or above
	// HeavyTruckThreshold.
	HeavyLotID          int
	HeavyTruckThreshold int

	// UsePriorityScore switches the lot ordering to the combined
	// distance/free-capacity score instead of plain average distance.
	UsePriorityScore bool

	SolverTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	S3Bucket string
	S3Prefix string
}

const (
	defaultAddr          = ":8061"
	defaultWestHalls     = "1,2,3,7,8,9,13,14,15"
	defaultWestLot       = 20
	defaultHeavyLot      = 5
	defaultHeavyTrucks   = 500
	defaultSolverTimeout = 2 * time.Minute
)

func Load() (Config, error) {
	cfg := Config{
		Addr:                getEnv("ALLOCATION_ADDR", defaultAddr),
		DatabaseURL:         firstNonEmpty(os.Getenv("ALLOCATION_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		DistanceCSV:         os.Getenv("ALLOCATION_DISTANCE_CSV"),
		WestHallIDs:         parseInts(getEnv("ALLOCATION_WEST_HALLS", defaultWestHalls)),
		WestLotID:           getInt("ALLOCATION_WEST_LOT", defaultWestLot),
		HeavyLotID:          getInt("ALLOCATION_HEAVY_LOT", defaultHeavyLot),
		HeavyTruckThreshold: getInt("ALLOCATION_HEAVY_TRUCK_THRESHOLD", defaultHeavyTrucks),
		UsePriorityScore:    getBool("ALLOCATION_USE_PRIORITY_SCORE", false),
		SolverTimeout:       getDuration("ALLOCATION_SOLVER_TIMEOUT", defaultSolverTimeout),
		KafkaBrokers:        parseCSV(os.Getenv("ALLOCATION_KAFKA_BROKERS")),
		KafkaTopic:          getEnv("ALLOCATION_KAFKA_TOPIC", "allocation-runs"),
		S3Bucket:            os.Getenv("ALLOCATION_S3_BUCKET"),
		S3Prefix:            getEnv("ALLOCATION_S3_PREFIX", "allocations"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or ALLOCATION_DATABASE_URL required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseInts(raw string) []int {
	var out []int
	for _, p := range parseCSV(raw) {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
