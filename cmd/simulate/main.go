// simulate fires concurrent booking requests at a running api-server and
// verifies the core guarantee: for every slot, exactly one request wins and
// the rest are rejected as conflicts.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/caredesk/hospital-booking/internal/db"
)

type simConfig struct {
	APIBaseURL  string
	Slots       int
	Contenders  int
	PostgresDSN string
}

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict || status == http.StatusServiceUnavailable:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	_ = godotenv.Load()

	cfg := simConfig{}
	flag.StringVar(&cfg.APIBaseURL, "api", "http://localhost:8080", "api-server base URL")
	flag.IntVar(&cfg.Slots, "slots", 20, "number of open slots to contend over")
	flag.IntVar(&cfg.Contenders, "contenders", 10, "concurrent booking attempts per slot")
	flag.Parse()

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required to load slot and patient ids")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	slots, err := loadIDs(ctx, pool, `
		SELECT id FROM availability_slots
		WHERE NOT is_booked AND slot_date >= CURRENT_DATE
		ORDER BY slot_date, starts_at
		LIMIT $1
	`, cfg.Slots)
	if err != nil {
		log.Fatalf("load slots: %v", err)
	}

	patients, err := loadIDs(ctx, pool, `
		SELECT id FROM users WHERE role = 'patient' LIMIT $1
	`, 500)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}

	if len(slots) == 0 || len(patients) == 0 {
		log.Fatal("no open slots or patients found, run cmd/seed first")
	}

	log.Printf("storming %d slots with %d contenders each", len(slots), cfg.Contenders)

	client := &http.Client{Timeout: 15 * time.Second}
	m := &metrics{}

	winners := make(map[uuid.UUID]int64)
	var winnersMu sync.Mutex

	start := time.Now()

	var wg sync.WaitGroup
	for _, slotID := range slots {
		for i := 0; i < cfg.Contenders; i++ {
			wg.Add(1)
			go func(slotID uuid.UUID) {
				defer wg.Done()

				patientID := patients[rand.Intn(len(patients))]
				status, latency := attemptBooking(client, cfg.APIBaseURL, slotID, patientID)
				m.record(latency, status)

				if status == http.StatusCreated {
					winnersMu.Lock()
					winners[slotID]++
					winnersMu.Unlock()
				}
			}(slotID)
		}
	}
	wg.Wait()

	elapsed := time.Since(start)

	violations := 0
	for slotID, wins := range winners {
		if wins != 1 {
			violations++
			log.Printf("VIOLATION: slot %s won %d times", slotID, wins)
		}
	}
	for _, slotID := range slots {
		if winners[slotID] == 0 {
			violations++
			log.Printf("VIOLATION: slot %s had no winner", slotID)
		}
	}

	fmt.Printf("\n=== simulation results ===\n")
	fmt.Printf("duration:    %s\n", elapsed)
	fmt.Printf("requests:    %d\n", atomic.LoadInt64(&m.total))
	fmt.Printf("successes:   %d (expected %d)\n", atomic.LoadInt64(&m.success), len(slots))
	fmt.Printf("conflicts:   %d\n", atomic.LoadInt64(&m.conflict))
	fmt.Printf("errors:      %d\n", atomic.LoadInt64(&m.errored))
	fmt.Printf("p50 latency: %s\n", m.percentile(50))
	fmt.Printf("p95 latency: %s\n", m.percentile(95))

	if violations > 0 {
		log.Fatalf("%d mutual-exclusion violations detected", violations)
	}
	fmt.Println("no double bookings detected")
}

func attemptBooking(client *http.Client, baseURL string, slotID, patientID uuid.UUID) (int, time.Duration) {
	payload, _ := json.Marshal(map[string]string{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
	})

	start := time.Now()
	resp, err := client.Post(baseURL+"/bookings", "application/json", bytes.NewReader(payload))
	latency := time.Since(start)
	if err != nil {
		log.Printf("request error for slot %s: %v", slotID, err)
		return 0, latency
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, latency
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
