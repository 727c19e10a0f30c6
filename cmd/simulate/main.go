package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/config"
	"github.com/clinicdesk/clinic-scheduling/internal/db"
)

// The simulator hammers POST /visits/reserve from many workers aimed at a
// small slot pool, then checks against Postgres that every slot ended up
// with at most one live visit.

type SimConfig struct {
	APIBaseURL  string
	Token       string
	Duration    time.Duration
	Workers     int
	SlotLimit   int
	PostgresDSN string
}

type Metrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	Latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case err == nil && status == http.StatusCreated:
		atomic.AddInt64(&m.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.Latencies = append(m.Latencies, latency)
	m.mu.Unlock()
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if cfg.Token == "" {
		log.Fatal("SIM_TOKEN is required (a patient or admin access token)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	patients, slots, err := loadPool(ctx, pgPool, cfg.SlotLimit)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d slots", len(patients), len(slots))

	metrics := &Metrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	runCtx, cancelRun := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancelRun()

	log.Printf("running for %s with %d workers", cfg.Duration, cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for runCtx.Err() == nil {
				reserve(runCtx, client, cfg, metrics, rng, patients, slots)
			}
		}(i)
	}
	wg.Wait()

	printReport(metrics)

	if err := checkOneWinner(ctx, pgPool); err != nil {
		log.Fatalf("INVARIANT VIOLATED: %v", err)
	}
	log.Println("invariant holds: at most one live visit per slot instant")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Token:       os.Getenv("SIM_TOKEN"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 20),
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 50),
		PostgresDSN: baseCfg.PostgresDSN,
	}
}

func loadPool(ctx context.Context, pool *pgxpool.Pool, slotLimit int) (patients, slots []int64, err error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 500`)
	if err != nil {
		return nil, nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, nil, err
		}
		patients = append(patients, id)
	}

	// a small slot pool forces contention
	rows, err = pool.Query(ctx, `
		SELECT id FROM doctor_slots
		WHERE available AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, slotLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, nil, err
		}
		slots = append(slots, id)
	}

	if len(patients) == 0 || len(slots) == 0 {
		return nil, nil, fmt.Errorf("empty data pool, run cmd/seed first")
	}
	return patients, slots, nil
}

func reserve(ctx context.Context, client *http.Client, cfg SimConfig, m *Metrics, rng *rand.Rand, patients, slots []int64) {
	body, _ := json.Marshal(map[string]int64{
		"slot_id":    slots[rng.Intn(len(slots))],
		"patient_id": patients[rng.Intn(len(patients))],
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIBaseURL+"/visits/reserve", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
		resp.Body.Close()
	}

	m.Record(latency, status, err)
}

// checkOneWinner asserts that no (doctor, instant) pair carries more than
// one live visit after the stampede.
func checkOneWinner(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT doctor_id, scheduled_at
			FROM visits
			WHERE status NOT IN ('cancelled', 'rejected')
			GROUP BY doctor_id, scheduled_at
			HAVING count(*) > 1
		) dup
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check duplicates: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%d slot instants carry more than one live visit", count)
	}
	return nil
}

func printReport(m *Metrics) {
	total := atomic.LoadInt64(&m.Total)
	if total == 0 {
		log.Println("no requests issued")
		return
	}

	m.mu.Lock()
	latencies := make([]time.Duration, len(m.Latencies))
	copy(latencies, m.Latencies)
	m.mu.Unlock()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg := sum / time.Duration(len(latencies))
	p95 := latencies[len(latencies)*95/100]

	success := atomic.LoadInt64(&m.Success)
	conflict := atomic.LoadInt64(&m.Conflict)
	errs := atomic.LoadInt64(&m.Error)

	fmt.Println("RESERVATION REPORT")
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	fmt.Printf("  Latency: avg=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p95.Round(time.Millisecond),
		latencies[len(latencies)-1].Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
