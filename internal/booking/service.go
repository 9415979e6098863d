package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caredesk/hospital-booking/internal/notify"
	redisclient "github.com/caredesk/hospital-booking/internal/redis"
)

var (
	ErrOnlyPatients      = errors.New("only patients may book appointments")
	ErrOnlyDoctors       = errors.New("only doctors may create availability slots")
	ErrSlotAlreadyBooked = errors.New("slot already has a booking")
	ErrSlotExpired       = errors.New("slot date has passed")
	ErrSlotDateInPast    = errors.New("slot date may not be in the past")
	ErrInvalidTimeRange  = errors.New("slot end time must be after start time")
	ErrStoreBusy         = errors.New("storage busy, please retry")
)

// Notifier accepts fire-and-forget notifications. Delivery is asynchronous and
// best-effort; the service never waits on it.
type Notifier interface {
	Dispatch(n notify.Notification)
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
	}
}

type RegisterDoctorInput struct {
	Username       string
	FullName       string
	Email          string
	Specialization string
	Phone          string
}

type RegisterPatientInput struct {
	Username    string
	FullName    string
	Email       string
	DateOfBirth *time.Time
	Phone       string
}

func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*User, error) {
	user := &User{
		ID:       uuid.New(),
		Username: in.Username,
		FullName: in.FullName,
		Email:    in.Email,
		Role:     RoleDoctor,
	}
	profile := &DoctorProfile{
		Specialization: in.Specialization,
		Phone:          in.Phone,
	}

	created, err := s.repo.CreateDoctor(ctx, user, profile)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create doctor: %w", err)
	}

	s.notifier.Dispatch(notify.Notification{
		Kind:      notify.KindSignupWelcome,
		Recipient: created.Email,
		Data: map[string]string{
			"name": created.FullName,
			"role": "Doctor",
		},
	})

	return created, nil
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*User, error) {
	user := &User{
		ID:       uuid.New(),
		Username: in.Username,
		FullName: in.FullName,
		Email:    in.Email,
		Role:     RolePatient,
	}
	profile := &PatientProfile{
		DateOfBirth: in.DateOfBirth,
		Phone:       in.Phone,
	}

	created, err := s.repo.CreatePatient(ctx, user, profile)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.notifier.Dispatch(notify.Notification{
		Kind:      notify.KindSignupWelcome,
		Recipient: created.Email,
		Data: map[string]string{
			"name": created.FullName,
			"role": "Patient",
		},
	})

	return created, nil
}

// CreateSlot adds an availability slot for a doctor. The (doctor, date, start)
// uniqueness is enforced by the storage layer, not here, so two concurrent
// creations of the same slot cannot both succeed.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, date, startsAt, endsAt time.Time) (*AvailabilitySlot, error) {
	doctor, err := s.repo.GetUserByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != RoleDoctor {
		return nil, ErrOnlyDoctors
	}

	if date.Before(today()) {
		return nil, ErrSlotDateInPast
	}
	if !startsAt.Before(endsAt) {
		return nil, ErrInvalidTimeRange
	}

	slot := &AvailabilitySlot{
		ID:       uuid.New(),
		DoctorID: doctorID,
		Date:     date,
		StartsAt: startsAt,
		EndsAt:   endsAt,
	}

	created, err := s.repo.CreateSlot(ctx, slot)
	if err != nil {
		if errors.Is(err, ErrDuplicateSlot) {
			return nil, err
		}
		return nil, fmt.Errorf("create slot: %w", err)
	}

	return created, nil
}

// BookSlot reserves a slot for a patient. It serializes with other booking
// attempts on the same slot via a per-slot lock; the decisive re-check and the
// two writes happen inside one storage transaction, so at most one caller ever
// succeeds for a given slot.
func (s *Service) BookSlot(ctx context.Context, patientID, slotID uuid.UUID) (*Booking, error) {
	patient, err := s.repo.GetUserByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Role != RolePatient {
		return nil, ErrOnlyPatients
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load slot: %w", err)
	}

	var created *Booking

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		b, err := s.repo.CreateBooking(lockCtx, slotID, patientID)
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return nil, ErrStoreBusy
		case storeUnavailable(err):
			log.Printf("booking slot %s: store unavailable: %v", slotID, err)
			return nil, ErrStoreBusy
		default:
			return nil, err
		}
	}

	// The booking stands from here on: notification trouble is logged, never
	// surfaced to the caller.
	doctor, err := s.repo.GetUserByID(ctx, slot.DoctorID)
	if err != nil {
		log.Printf("booking %s created but doctor %s lookup for notifications failed: %v", created.ID, slot.DoctorID, err)
		return created, nil
	}

	data := map[string]string{
		"patient_name": patient.FullName,
		"doctor_name":  doctor.FullName,
		"date":         slot.Date.Format("2006-01-02"),
		"time":         slot.StartsAt.Format("15:04"),
	}
	s.notifier.Dispatch(notify.Notification{
		Kind:      notify.KindBookingConfirmation,
		Recipient: patient.Email,
		Data:      data,
	})
	s.notifier.Dispatch(notify.Notification{
		Kind:      notify.KindBookingConfirmation,
		Recipient: doctor.Email,
		Data:      data,
	})

	return created, nil
}

// storeUnavailable reports whether err is a transient storage failure rather
// than a verdict on the booking itself: a refused or dropped connection, or a
// pool acquire that timed out. Those map to ErrStoreBusy so callers retry.
func storeUnavailable(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) ListDoctors(ctx context.Context) ([]User, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// ListOpenSlots returns a doctor's unbooked slots from today onward.
func (s *Service) ListOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]AvailabilitySlot, error) {
	doctor, err := s.repo.GetUserByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != RoleDoctor {
		return nil, ErrDoctorNotFound
	}

	slots, err := s.repo.ListOpenSlots(ctx, doctorID, today())
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	return slots, nil
}

func (s *Service) ListBookingsByPatient(ctx context.Context, patientID uuid.UUID) ([]BookingDetail, error) {
	bookings, err := s.repo.ListBookingsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by patient: %w", err)
	}
	return bookings, nil
}

func (s *Service) ListBookingsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]BookingDetail, error) {
	bookings, err := s.repo.ListBookingsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by doctor: %w", err)
	}
	return bookings, nil
}

// today returns the current calendar day at midnight UTC. Slot expiry is a
// whole-day check: a slot for today stays bookable until the day ends.
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
