package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FullName,
		&u.Email,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func scanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartsAt,
		&s.EndsAt,
		&s.Booked,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.PatientID,
		&b.BookedAt,
		&b.DoctorEventRef,
		&b.PatientEventRef,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) CreateDoctor(ctx context.Context, user *User, profile *DoctorProfile) (*User, error) {
	return r.createUser(ctx, user, RoleDoctor, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_profiles (user_id, specialization, phone)
			VALUES ($1, $2, $3)
		`, user.ID, profile.Specialization, profile.Phone)
		return err
	})
}

func (r *PgRepository) CreatePatient(ctx context.Context, user *User, profile *PatientProfile) (*User, error) {
	return r.createUser(ctx, user, RolePatient, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO patient_profiles (user_id, date_of_birth, phone)
			VALUES ($1, $2, $3)
		`, user.ID, profile.DateOfBirth, profile.Phone)
		return err
	})
}

// createUser inserts the user row and its role profile in one transaction.
func (r *PgRepository) createUser(ctx context.Context, user *User, role Role, insertProfile func(tx pgx.Tx) error) (*User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO users (id, username, full_name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, username, full_name, email, role, created_at
	`, user.ID, user.Username, user.FullName, user.Email, role)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if err := insertProfile(tx); err != nil {
		return nil, fmt.Errorf("insert %s profile: %w", role, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, full_name, email, role, created_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, full_name, email, role, created_at
		FROM users
		WHERE role = 'doctor'
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *AvailabilitySlot) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, slot_date, starts_at, ends_at, is_booked, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, now())
		RETURNING id, doctor_id, slot_date, starts_at, ends_at, is_booked, created_at
	`, slot.ID, slot.DoctorID, slot.Date, slot.StartsAt, slot.EndsAt)

	created, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, slot_date, starts_at, ends_at, is_booked, created_at
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]AvailabilitySlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, slot_date, starts_at, ends_at, is_booked, created_at
		FROM availability_slots
		WHERE doctor_id = $1
		  AND NOT is_booked
		  AND slot_date >= $2
		ORDER BY slot_date, starts_at
	`, doctorID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

// CreateBooking is the concurrency-critical path. SELECT ... FOR UPDATE blocks
// any concurrent booking attempt on the same slot row until this transaction
// commits or rolls back; the loser then observes is_booked = true. Both writes
// commit together or not at all.
func (r *PgRepository) CreateBooking(ctx context.Context, slotID, patientID uuid.UUID) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, doctor_id, slot_date, starts_at, ends_at, is_booked, created_at
		FROM availability_slots
		WHERE id = $1
		FOR UPDATE
	`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		return nil, err
	}

	if slot.Booked {
		return nil, ErrSlotAlreadyBooked
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if slot.Date.Before(midnight) {
		return nil, ErrSlotExpired
	}

	bookingRow := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, slot_id, patient_id, booked_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, slot_id, patient_id, booked_at, doctor_event_ref, patient_event_ref
	`, uuid.New(), slotID, patientID)

	created, err := scanBooking(bookingRow)
	if err != nil {
		if isUniqueViolation(err) {
			// Unreachable while the FOR UPDATE path holds, kept as a backstop.
			return nil, ErrSlotAlreadyBooked
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET is_booked = TRUE
		WHERE id = $1
	`, slotID); err != nil {
		return nil, fmt.Errorf("mark slot booked: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return created, nil
}

func (r *PgRepository) ListBookingsByPatient(ctx context.Context, patientID uuid.UUID) ([]BookingDetail, error) {
	return r.listBookingDetails(ctx, `WHERE b.patient_id = $1`, patientID)
}

func (r *PgRepository) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]BookingDetail, error) {
	return r.listBookingDetails(ctx, `WHERE s.doctor_id = $1`, doctorID)
}

func (r *PgRepository) listBookingDetails(ctx context.Context, where string, arg any) ([]BookingDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.slot_id, b.patient_id, b.booked_at, b.doctor_event_ref, b.patient_event_ref,
		       s.id, s.doctor_id, s.slot_date, s.starts_at, s.ends_at, s.is_booked, s.created_at,
		       p.id, p.username, p.full_name, p.email, p.role, p.created_at,
		       d.id, d.username, d.full_name, d.email, d.role, d.created_at
		FROM bookings b
		JOIN availability_slots s ON s.id = b.slot_id
		JOIN users p ON p.id = b.patient_id
		JOIN users d ON d.id = s.doctor_id
		`+where+`
		ORDER BY s.slot_date, s.starts_at
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookingDetail
	for rows.Next() {
		var (
			detail  BookingDetail
			slot    AvailabilitySlot
			patient User
			doctor  User
		)
		err := rows.Scan(
			&detail.ID, &detail.SlotID, &detail.PatientID, &detail.BookedAt,
			&detail.DoctorEventRef, &detail.PatientEventRef,
			&slot.ID, &slot.DoctorID, &slot.Date, &slot.StartsAt, &slot.EndsAt,
			&slot.Booked, &slot.CreatedAt,
			&patient.ID, &patient.Username, &patient.FullName, &patient.Email,
			&patient.Role, &patient.CreatedAt,
			&doctor.ID, &doctor.Username, &doctor.FullName, &doctor.Email,
			&doctor.Role, &doctor.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		detail.Slot = &slot
		detail.Patient = &patient
		detail.Doctor = &doctor
		result = append(result, detail)
	}

	return result, rows.Err()
}
