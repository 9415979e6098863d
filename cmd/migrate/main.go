package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/caredesk/hospital-booking/internal/db"
)

// Schema statements run in order; every statement is idempotent so the
// migrator can be re-run safely.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('doctor', 'patient')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS doctor_profiles (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		specialization TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS patient_profiles (
		user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		date_of_birth DATE,
		phone TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS availability_slots (
		id UUID PRIMARY KEY,
		doctor_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		slot_date DATE NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ NOT NULL,
		is_booked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT slots_time_range CHECK (starts_at < ends_at),
		CONSTRAINT slots_doctor_date_start UNIQUE (doctor_id, slot_date, starts_at)
	)`,

	// slot_id is UNIQUE: one booking per slot, ever, enforced by storage.
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		slot_id UUID NOT NULL UNIQUE REFERENCES availability_slots(id) ON DELETE CASCADE,
		patient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		booked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		doctor_event_ref TEXT,
		patient_event_ref TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_slots_doctor_open
		ON availability_slots (doctor_id, slot_date)
		WHERE NOT is_booked`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_patient ON bookings (patient_id)`,
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("migrate starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	for i, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("statement %d failed: %v", i+1, err)
		}
	}

	log.Printf("migrate complete, %d statements applied", len(statements))
}
