package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/pkg/logging"
)

type SimConfig struct {
	APIBaseURL string
	Date       string
	Workers    int
	Attempts   int
	CheckIns   int
	Token      string
}

type slotKey struct {
	doctor uuid.UUID
	start  string
}

// Target is one bookable slot handed to every worker at once.
type Target struct {
	DoctorID  uuid.UUID
	SlotStart time.Time
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
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
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	at := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return at(50), at(95), latencies[len(latencies)-1]
}

type Simulator struct {
	config SimConfig
	client *http.Client
	logger zerolog.Logger

	booking OperationMetrics
	checkIn OperationMetrics

	mu      sync.Mutex
	winners map[slotKey]int
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL")).With().Str("service", "simulate").Logger()

	cfg := loadConfig()
	if cfg.Workers <= 0 || cfg.Attempts <= 0 {
		logger.Fatal().Msg("SIM_WORKERS and SIM_ATTEMPTS must be > 0")
	}

	sim := &Simulator{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		winners: make(map[slotKey]int),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	targets, err := sim.loadTargets(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load targets")
	}
	logger.Info().Int("targets", len(targets)).Str("date", cfg.Date).Int("workers", cfg.Workers).Msg("simulator starting")

	sim.RaceBookings(ctx, targets)
	sim.RaceCheckIns(ctx, targets)
	if !sim.PrintReport() {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Date:       getEnv("SIM_DATE", nextWeekday(time.Now()).Format(time.DateOnly)),
		Workers:    getInt("SIM_WORKERS", 20),
		Attempts:   getInt("SIM_ATTEMPTS", 10),
		CheckIns:   getInt("SIM_CHECKINS", 50),
		Token:      os.Getenv("SIM_TOKEN"),
	}
}

// loadTargets asks the server which slots are free on the simulation date and
// keeps up to Attempts of them.
func (s *Simulator) loadTargets(ctx context.Context) ([]Target, error) {
	var resp struct {
		Doctors []struct {
			DoctorID uuid.UUID   `json:"doctor_id"`
			Slots    []time.Time `json:"slots"`
		} `json:"doctors"`
	}
	if err := s.getJSON(ctx, "/availability?date="+s.config.Date, &resp); err != nil {
		return nil, err
	}

	var targets []Target
	for _, d := range resp.Doctors {
		for _, slot := range d.Slots {
			targets = append(targets, Target{DoctorID: d.DoctorID, SlotStart: slot})
		}
	}
	rand.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	if len(targets) > s.config.Attempts {
		targets = targets[:s.config.Attempts]
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no free slots on %s", s.config.Date)
	}
	return targets, nil
}

// RaceBookings releases all workers on the same slot together, one target at
// a time.
func (s *Simulator) RaceBookings(ctx context.Context, targets []Target) {
	for _, target := range targets {
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < s.config.Workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				s.book(ctx, target)
			}()
		}
		close(start)
		wg.Wait()
	}
}

func (s *Simulator) book(ctx context.Context, target Target) {
	body := map[string]string{
		"patient_id":       uuid.NewString(),
		"doctor_id":        target.DoctorID.String(),
		"slot_start":       target.SlotStart.Format(time.RFC3339),
		"appointment_type": "simulation",
	}

	begin := time.Now()
	status, err := s.postJSON(ctx, "/appointments", body)
	latency := time.Since(begin)
	if err != nil {
		s.logger.Debug().Err(err).Msg("booking request failed")
	}
	s.booking.Record(latency, status)

	if status == http.StatusCreated {
		s.mu.Lock()
		s.winners[slotKey{target.DoctorID, target.SlotStart.UTC().Format(time.RFC3339)}]++
		s.mu.Unlock()
	}
}

// RaceCheckIns walks patients into the doctors' queues concurrently.
func (s *Simulator) RaceCheckIns(ctx context.Context, targets []Target) {
	var wg sync.WaitGroup
	for i := 0; i < s.config.CheckIns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := targets[i%len(targets)]
			body := map[string]any{
				"patient_id": uuid.NewString(),
				"doctor_id":  target.DoctorID.String(),
				"priority":   i % 3,
			}
			begin := time.Now()
			status, err := s.postJSON(ctx, "/checkins", body)
			if err != nil {
				s.logger.Debug().Err(err).Msg("check-in request failed")
			}
			s.checkIn.Record(time.Since(begin), status)
		}(i)
	}
	wg.Wait()
}

func (s *Simulator) postJSON(ctx context.Context, path string, body any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (s *Simulator) authorize(req *http.Request) {
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}
}

// PrintReport reports false when any slot was won more than once.
func (s *Simulator) PrintReport() bool {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s  Workers per slot: %d\n\n", s.config.Date, s.config.Workers)

	printOperationReport("Booking", &s.booking)
	printOperationReport("Check-in", &s.checkIn)

	s.mu.Lock()
	defer s.mu.Unlock()
	doubles := 0
	for key, n := range s.winners {
		if n > 1 {
			doubles++
			fmt.Printf("DOUBLE BOOKED: doctor=%s slot=%s winners=%d\n", key.doctor, key.start, n)
		}
	}
	fmt.Printf("Slots won: %d  Double bookings: %d\n", len(s.winners), doubles)
	return doubles == 0
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	p50, p95, max := om.Percentiles()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: p50=%s p95=%s max=%s\n\n",
		p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func nextWeekday(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
