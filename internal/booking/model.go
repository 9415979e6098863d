package booking

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

type User struct {
	ID        uuid.UUID
	Username  string
	FullName  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

type DoctorProfile struct {
	UserID         uuid.UUID
	Specialization string
	Phone          string
}

type PatientProfile struct {
	UserID      uuid.UUID
	DateOfBirth *time.Time
	Phone       string
}

// AvailabilitySlot is a doctor-defined bookable interval on a calendar day.
// Date carries the day at midnight UTC; StartsAt/EndsAt are the full instants.
type AvailabilitySlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartsAt  time.Time
	EndsAt    time.Time
	Booked    bool
	CreatedAt time.Time
}

// Booking links one patient to one slot. A slot yields at most one booking,
// ever; the bookings table carries a UNIQUE constraint on slot_id as a
// storage-level backstop.
type Booking struct {
	ID              uuid.UUID
	SlotID          uuid.UUID
	PatientID       uuid.UUID
	BookedAt        time.Time
	DoctorEventRef  *string
	PatientEventRef *string
}

type BookingDetail struct {
	Booking
	Slot    *AvailabilitySlot
	Patient *User
	Doctor  *User
}
