package api

import (
	"time"

	"github.com/google/uuid"
)

type RegisterDoctorRequest struct {
	Username       string `json:"username" validate:"required,min=3,max=30"`
	FullName       string `json:"full_name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Specialization string `json:"specialization" validate:"required,max=100"`
	Phone          string `json:"phone" validate:"omitempty,max=15"`
}

type RegisterPatientRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=30"`
	FullName    string `json:"full_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Phone       string `json:"phone" validate:"omitempty,max=15"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

type CreateSlotRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Booked    bool      `json:"booked"`
}

type CreateBookingRequest struct {
	SlotID    string `json:"slot_id" validate:"required,uuid"`
	PatientID string `json:"patient_id" validate:"required,uuid"`
}

type BookingResponse struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	BookedAt  time.Time `json:"booked_at"`
}

type BookingDetailResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	BookedAt    time.Time `json:"booked_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
