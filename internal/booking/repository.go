package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")

	ErrUsernameTaken = errors.New("username already taken")
	ErrDuplicateSlot = errors.New("doctor already has a slot at this date and start time")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	CreateDoctor(ctx context.Context, user *User, profile *DoctorProfile) (*User, error)
	CreatePatient(ctx context.Context, user *User, profile *PatientProfile) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListDoctors(ctx context.Context) ([]User, error)

	CreateSlot(ctx context.Context, slot *AvailabilitySlot) (*AvailabilitySlot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error)
	// ListOpenSlots returns a doctor's unbooked slots on or after the given day,
	// ordered by date and start time.
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]AvailabilitySlot, error)

	// CreateBooking runs the atomic booking unit: it locks the slot row,
	// re-checks under the lock that the slot is still unbooked and not in the
	// past, then inserts the booking and flips the booked flag in the same
	// transaction. Either both writes commit or neither is visible.
	CreateBooking(ctx context.Context, slotID, patientID uuid.UUID) (*Booking, error)

	ListBookingsByPatient(ctx context.Context, patientID uuid.UUID) ([]BookingDetail, error)
	ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]BookingDetail, error)
}
