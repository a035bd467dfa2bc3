package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/db"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	redisclient "github.com/hackgods/clinic-appointment-booking/internal/redis"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var serviceCatalog = map[string][]string{
	"Diagnostics":  {"Complete Blood Count", "Lipid Profile", "Thyroid Panel", "HbA1c"},
	"Imaging":      {"Chest X-Ray", "Abdominal Ultrasound", "MRI Brain"},
	"Therapy":      {"Physiotherapy Session", "Speech Therapy"},
	"Preventive":   {"Annual Health Check", "Vaccination"},
	"Consultation": {"Diet Consultation", "Tele-consult Follow-up"},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	_ = gofakeit.Seed(time.Now().UnixNano())

	logger := logging.New(getEnv("LOG_LEVEL", "info")).With("service", "seed")
	providerRepo := provider.NewPgRepository(pool)
	providers := provider.NewService(providerRepo, logger)
	appointments := appointment.NewService(appointment.NewPgRepository(pool), providerRepo,
		redisclient.NewLocalSlotLocker(), schedule.SystemClock{}, logger, nil)

	days := getInt("SEED_DAYS", 14)
	seeded, err := seedProviders(context.Background(), providers, getInt("SEED_DOCTORS", 25), getInt("SEED_SERVICES", 10), days)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	if err := seedAppointments(context.Background(), appointments, seeded, getInt("SEED_PATIENTS", 200)); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, svc *provider.Service, doctors, services, days int) ([]*provider.Provider, error) {
	log.Printf("seeding %d doctors and %d services over %d days", doctors, services, days)

	var out []*provider.Provider
	for i := 0; i < doctors; i++ {
		p, err := svc.Create(ctx, provider.Provider{
			Kind:      provider.KindDoctor,
			Name:      "Dr. " + gofakeit.Name(),
			Category:  specialties[gofakeit.Number(0, len(specialties)-1)],
			Fee:       float64(gofakeit.Number(3, 20) * 100),
			Available: gofakeit.Number(0, 9) > 0,
		})
		if err != nil {
			return nil, err
		}
		if p, err = fillCalendar(ctx, svc, p, days); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	categories := make([]string, 0, len(serviceCatalog))
	for c := range serviceCatalog {
		categories = append(categories, c)
	}
	for i := 0; i < services; i++ {
		category := categories[gofakeit.Number(0, len(categories)-1)]
		names := serviceCatalog[category]
		p, err := svc.Create(ctx, provider.Provider{
			Kind:      provider.KindService,
			Name:      names[gofakeit.Number(0, len(names)-1)],
			Category:  category,
			Fee:       float64(gofakeit.Number(2, 40) * 50),
			Available: true,
		})
		if err != nil {
			return nil, err
		}
		if p, err = fillCalendar(ctx, svc, p, days); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	log.Printf("providers seeded: %d", len(out))
	return out, nil
}

// fillCalendar offers a random subset of half-hour slots between 09:00 and 17:00
// on each of the next days.
func fillCalendar(ctx context.Context, svc *provider.Service, p *provider.Provider, days int) (*provider.Provider, error) {
	today := time.Now()
	var err error
	for d := 1; d <= days; d++ {
		date := schedule.DateOf(today.AddDate(0, 0, d)).String()
		for minute := 9 * 60; minute < 17*60; minute += 30 {
			if gofakeit.Number(0, 2) == 0 {
				continue
			}
			clock := schedule.TimeOfDay(minute).String()
			if p, err = svc.AddSlot(ctx, p.Ref(), date, clock, true); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func seedAppointments(ctx context.Context, svc *appointment.Service, providers []*provider.Provider, patients int) error {
	log.Printf("seeding bookings for %d patients", patients)

	var booked, taken int
	for i := 0; i < patients; i++ {
		p := providers[gofakeit.Number(0, len(providers)-1)]
		if !p.Bookable() {
			continue
		}
		dates := p.Calendar.Dates()
		if len(dates) == 0 {
			continue
		}
		date := dates[gofakeit.Number(0, len(dates)-1)]
		slots := p.Calendar.Slots(date)
		if len(slots) == 0 {
			continue
		}
		slot := slots[gofakeit.Number(0, len(slots)-1)]

		_, err := svc.CreateAppointment(ctx, uuid.NewString(), appointment.CreateRequest{
			Provider: p.Ref(),
			Patient: appointment.Patient{
				Name:   gofakeit.Name(),
				Age:    gofakeit.Number(1, 90),
				Gender: gofakeit.Gender(),
				Mobile: gofakeit.Numerify("##########"),
			},
			Date:          date.String(),
			Time:          slot.String(),
			PaymentMethod: string(appointment.PaymentCash),
		})
		switch {
		case err == nil:
			booked++
		case errors.Is(err, appointment.ErrSlotAlreadyTaken):
			taken++
		default:
			return err
		}
	}

	log.Printf("appointments seeded: %d booked, %d collisions", booked, taken)
	return nil
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
