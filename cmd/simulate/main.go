package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localbook/booking/internal/config"
	"github.com/localbook/booking/internal/db"
)

// simulate drives concurrent reservation traffic at the API and then checks
// the ledger invariant: no two surviving appointments for one business may
// overlap, no matter how the race between workers played out.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	// CancelRatio is the fraction of iterations that cancel a previously
	// created booking instead of reserving a new one.
	CancelRatio float64
}

type target struct {
	BusinessID uuid.UUID
	ServiceID  uuid.UUID
}

type DataPool struct {
	Targets []target
	Clients []uuid.UUID

	mu       sync.RWMutex
	bookings []uuid.UUID
}

func (dp *DataPool) AddBooking(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, id)
}

func (dp *DataPool) RandomBooking() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return uuid.Nil, false
	}
	return dp.bookings[rand.Intn(len(dp.bookings))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95idx := len(latencies) * 95 / 100
	if p95idx >= len(latencies) {
		p95idx = len(latencies) - 1
	}
	p95 = latencies[p95idx]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulate starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	sim := SimConfig{
		APIBaseURL:  getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:    getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:     getIntEnv("SIM_WORKERS", 20),
		CancelRatio: 0.1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	dp, err := loadDataPool(context.Background(), pool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded %d bookable services across businesses, %d clients", len(dp.Targets), len(dp.Clients))

	metrics := &OperationMetrics{}
	runCtx, stop := context.WithTimeout(context.Background(), sim.Duration)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < sim.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(runCtx, sim, dp, metrics)
		}()
	}
	wg.Wait()

	avg, p50, p95 := metrics.Stats()
	log.Printf("total=%d success=%d conflict=%d error=%d", metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	log.Printf("latency avg=%s p50=%s p95=%s", avg, p50, p95)

	if err := verifyNoOverlaps(context.Background(), pool); err != nil {
		log.Fatalf("INVARIANT VIOLATED: %v", err)
	}
	log.Println("non-overlap invariant holds")
}

func worker(ctx context.Context, sim SimConfig, dp *DataPool, metrics *OperationMetrics) {
	client := &http.Client{Timeout: 10 * time.Second}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if rand.Float64() < sim.CancelRatio {
			if id, ok := dp.RandomBooking(); ok {
				cancelBooking(ctx, client, sim.APIBaseURL, id)
				continue
			}
		}

		t := dp.Targets[rand.Intn(len(dp.Targets))]
		clientID := dp.Clients[rand.Intn(len(dp.Clients))]

		// Aligned start inside business hours over the next week. A narrow
		// range keeps workers colliding on the same slots, which is the
		// point of the exercise.
		day := time.Now().UTC().AddDate(0, 0, 1+rand.Intn(7))
		minute := 9*60 + 15*rand.Intn(8*4) // between 09:00 and 16:45
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).
			Add(time.Duration(minute) * time.Minute)

		body, _ := json.Marshal(map[string]string{
			"business_id": t.BusinessID.String(),
			"service_id":  t.ServiceID.String(),
			"client_id":   clientID.String(),
			"start_time":  start.Format(time.RFC3339),
		})

		began := time.Now()
		resp, err := client.Post(sim.APIBaseURL+"/bookings", "application/json", bytes.NewReader(body))
		if err != nil {
			metrics.Record(time.Since(began), 0)
			continue
		}

		if resp.StatusCode == http.StatusCreated {
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
				dp.AddBooking(created.ID)
			}
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
		}
		_ = resp.Body.Close()

		metrics.Record(time.Since(began), resp.StatusCode)
	}
}

func cancelBooking(ctx context.Context, client *http.Client, baseURL string, id uuid.UUID) {
	body := bytes.NewReader([]byte(`{"status":"cancelled"}`))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, fmt.Sprintf("%s/bookings/%s/status", baseURL, id), body)
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT business_id, id
		FROM services
		LIMIT 200
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t target
		if err := rows.Scan(&t.BusinessID, &t.ServiceID); err != nil {
			return nil, err
		}
		dp.Targets = append(dp.Targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	clientRows, err := pool.Query(ctx, `SELECT id FROM clients LIMIT 1000`)
	if err != nil {
		return nil, err
	}
	defer clientRows.Close()

	for clientRows.Next() {
		var id uuid.UUID
		if err := clientRows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Clients = append(dp.Clients, id)
	}
	if err := clientRows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Targets) == 0 || len(dp.Clients) == 0 {
		return nil, fmt.Errorf("data pool empty, run cmd/seed first")
	}

	return dp, nil
}

// verifyNoOverlaps asks Postgres for any pair of surviving appointments on
// the same business whose time ranges intersect.
func verifyNoOverlaps(ctx context.Context, pool *pgxpool.Pool) error {
	row := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.business_id = b.business_id
		 AND a.id < b.id
		 AND a.status IN ('confirmed', 'completed')
		 AND b.status IN ('confirmed', 'completed')
		 AND a.start_time < b.start_time + make_interval(mins => b.duration_minutes)
		 AND b.start_time < a.start_time + make_interval(mins => a.duration_minutes)
	`)

	var overlapping int
	if err := row.Scan(&overlapping); err != nil {
		return err
	}
	if overlapping > 0 {
		return fmt.Errorf("%d overlapping appointment pairs found", overlapping)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
