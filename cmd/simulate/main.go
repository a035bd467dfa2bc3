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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/api"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/identity"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Patients     int
	BookingRatio float64
	ConfirmRatio float64
	CancelRatio  float64
	ReadRatio    float64
	JWTSecret    string
	JWTIssuer    string
}

// target is one bookable provider slot.
type target struct {
	Kind       string
	ProviderID string
	Date       string
	Time       string
}

type DataPool struct {
	Targets       []target
	PatientTokens []string
	AdminToken    string
	mu            sync.RWMutex
	appointments  []uuid.UUID // Thread-safe list of created appointment IDs
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking    OperationMetrics
	Confirm    OperationMetrics
	Cancel     OperationMetrics
	ListMine   OperationMetrics
	AdminList  OperationMetrics
	Dashboards OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d patients=%d booking=%.2f confirm=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.Patients, cfg.BookingRatio, cfg.ConfirmRatio, cfg.CancelRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = dataPool

	log.Printf("loaded: %d bookable slots, %d patients", len(dataPool.Targets), len(dataPool.PatientTokens))

	// Run simulation
	sim.Run()

	// Print report
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:"+baseCfg.HTTPPort),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Patients:     getInt("SIM_PATIENTS", 500),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.15),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		JWTSecret:    baseCfg.JWTSecret,
		JWTIssuer:    baseCfg.JWTIssuer,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	return nil
}

// loadDataPool mints tokens and collects every currently bookable slot from the API.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	verifier := identity.NewVerifier(s.config.JWTSecret, s.config.JWTIssuer)
	ttl := s.config.Duration + 5*time.Minute

	dataPool := &DataPool{}
	admin, err := verifier.Issue(identity.Principal{Subject: "simulator-admin", Role: identity.RoleAdmin}, ttl)
	if err != nil {
		return nil, fmt.Errorf("issue admin token: %w", err)
	}
	dataPool.AdminToken = admin

	for i := 0; i < s.config.Patients; i++ {
		tok, err := verifier.Issue(identity.Principal{Subject: "sim-patient-" + strconv.Itoa(i), Role: identity.RolePatient}, ttl)
		if err != nil {
			return nil, fmt.Errorf("issue patient token: %w", err)
		}
		dataPool.PatientTokens = append(dataPool.PatientTokens, tok)
	}

	for _, kind := range []string{"doctor", "service"} {
		var providers []api.ProviderResponse
		if _, err := s.getJSON(ctx, "/providers/"+kind, admin, &providers); err != nil {
			return nil, fmt.Errorf("list %s providers: %w", kind, err)
		}
		for _, p := range providers {
			if !p.Available {
				continue
			}
			var days []schedule.DayView
			if _, err := s.getJSON(ctx, fmt.Sprintf("/providers/%s/%s/dates", kind, p.ID), admin, &days); err != nil {
				return nil, fmt.Errorf("load dates of %s: %w", p.ID, err)
			}
			for _, day := range days {
				for _, slot := range day.Slots {
					if !slot.Bookable {
						continue
					}
					dataPool.Targets = append(dataPool.Targets, target{
						Kind:       kind,
						ProviderID: p.ID.String(),
						Date:       day.Date.String(),
						Time:       slot.Time.String(),
					})
				}
			}
		}
	}

	if len(dataPool.Targets) == 0 {
		return nil, fmt.Errorf("no bookable slots found; run cmd/seed first")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Select operation based on ratios
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				// Read operations - distribute evenly
				switch rng.Intn(3) {
				case 0:
					s.doListMine(ctx, rng)
				case 1:
					s.doAdminList(ctx)
				case 2:
					s.doDashboard(ctx)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	t := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	body := api.CreateAppointmentRequest{
		ProviderKind: t.Kind,
		ProviderID:   t.ProviderID,
		Date:         t.Date,
		Time:         t.Time,
		Patient: api.PatientDetails{
			Name:   "Sim Patient",
			Age:    18 + rng.Intn(60),
			Gender: []string{"female", "male", "other"}[rng.Intn(3)],
			Mobile: fmt.Sprintf("9%09d", rng.Intn(1_000_000_000)),
		},
		PaymentMethod: "Cash",
	}

	start := time.Now()
	var created api.AppointmentResponse
	status, err := s.sendJSON(ctx, http.MethodPost, "/appointments", token, body, &created)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && created.ID != uuid.Nil {
		s.pool.AddAppointment(created.ID)
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodPost, "/admin/appointments/"+apptID.String()+"/transition",
		s.pool.AdminToken, api.TransitionRequest{Status: "confirmed"}, nil)
	latency := time.Since(start)

	s.metrics.Confirm.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.sendJSON(ctx, http.MethodPost, "/admin/appointments/"+apptID.String()+"/cancel", s.pool.AdminToken, nil, nil)
	latency := time.Since(start)

	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	token := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]

	start := time.Now()
	status, err := s.getJSON(ctx, "/appointments/mine", token, nil)
	s.metrics.ListMine.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doAdminList(ctx context.Context) {
	start := time.Now()
	status, err := s.getJSON(ctx, "/admin/appointments?limit=20&offset=0", s.pool.AdminToken, nil)
	s.metrics.AdminList.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doDashboard(ctx context.Context) {
	start := time.Now()
	status, err := s.getJSON(ctx, "/admin/stats", s.pool.AdminToken, nil)
	s.metrics.Dashboards.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) getJSON(ctx context.Context, path, token string, out any) (int, error) {
	return s.sendJSON(ctx, http.MethodGet, path, token, nil, out)
}

// sendJSON performs one API call and decodes a 2xx body into out when set.
func (s *Simulator) sendJSON(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("List mine", &s.metrics.ListMine)
	printOperationReport("Admin list", &s.metrics.AdminList)
	printOperationReport("Dashboard", &s.metrics.Dashboards)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

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

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
