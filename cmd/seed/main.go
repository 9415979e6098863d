package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/caredesk/hospital-booking/internal/db"
)

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

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specializations := []string{
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

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		username := strings.ToLower(gofakeit.Username()) + gofakeit.DigitN(3)

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, username, full_name, email, role, created_at)
			VALUES ($1, $2, $3, $4, 'doctor', now())
		`, id, username, name, gofakeit.Email())
		if err != nil {
			return nil, err
		}

		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO doctor_profiles (user_id, specialization, phone)
			VALUES ($1, $2, $3)
		`, id, spec, gofakeit.Phone())
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		username := strings.ToLower(gofakeit.Username()) + gofakeit.DigitN(3)

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, username, full_name, email, role, created_at)
			VALUES ($1, $2, $3, $4, 'patient', now())
		`, id, username, gofakeit.Name(), gofakeit.Email())
		if err != nil {
			return err
		}

		dob := gofakeit.DateRange(
			time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2007, 12, 31, 0, 0, 0, 0, time.UTC),
		)
		_, err = tx.Exec(ctx, `
			INSERT INTO patient_profiles (user_id, date_of_birth, phone)
			VALUES ($1, $2, $3)
		`, id, dob, gofakeit.Phone())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("patients seeded")
	return nil
}

// seedSlots creates 30-minute slots between 09:00 and 17:00 for the next
// seven days for every doctor.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding slots for %d doctors", len(doctorIDs))

	now := time.Now().UTC()
	firstDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, doctorID := range doctorIDs {
		for day := 0; day < 7; day++ {
			date := firstDay.AddDate(0, 0, day)
			for hour := 9; hour < 17; hour++ {
				for _, minute := range []int{0, 30} {
					startsAt := date.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
					endsAt := startsAt.Add(30 * time.Minute)

					_, err := tx.Exec(ctx, `
						INSERT INTO availability_slots (id, doctor_id, slot_date, starts_at, ends_at, is_booked, created_at)
						VALUES ($1, $2, $3, $4, $5, FALSE, now())
					`, uuid.New(), doctorID, date, startsAt, endsAt)
					if err != nil {
						return err
					}
					total++
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("slots seeded: %d", total)
	return nil
}
