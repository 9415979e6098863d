package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/caredesk/hospital-booking/internal/booking"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode parses the JSON body into dst and runs struct validation.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func registerDoctorHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterDoctorRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		user, err := svc.RegisterDoctor(r.Context(), booking.RegisterDoctorInput{
			Username:       req.Username,
			FullName:       req.FullName,
			Email:          req.Email,
			Specialization: req.Specialization,
			Phone:          req.Phone,
		})
		if err != nil {
			handleRegisterError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(user))
	}
}

func registerPatientHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterPatientRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		var dob *time.Time
		if req.DateOfBirth != "" {
			d, err := time.ParseInLocation("2006-01-02", req.DateOfBirth, time.UTC)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD")
				return
			}
			dob = &d
		}

		user, err := svc.RegisterPatient(r.Context(), booking.RegisterPatientInput{
			Username:    req.Username,
			FullName:    req.FullName,
			Email:       req.Email,
			DateOfBirth: dob,
			Phone:       req.Phone,
		})
		if err != nil {
			handleRegisterError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(user))
	}
}

func listDoctorsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]UserResponse, 0, len(doctors))
		for i := range doctors {
			resp = append(resp, toUserResponse(&doctors[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createSlotHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		date, startsAt, err := combineDayTime(req.Date, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_time", err.Error())
			return
		}
		_, endsAt, err := combineDayTime(req.Date, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_time", err.Error())
			return
		}

		slot, err := svc.CreateSlot(r.Context(), doctorID, date, startsAt, endsAt)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func listDoctorSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "invalid_doctor_id", "doctor id must be a valid UUID")
		if !ok {
			return
		}

		slots, err := svc.ListOpenSlots(r.Context(), doctorID)
		if err != nil {
			handleSlotError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, toSlotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		b, err := svc.BookSlot(r.Context(), patientID, slotID)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			ID:        b.ID,
			SlotID:    b.SlotID,
			PatientID: b.PatientID,
			BookedAt:  b.BookedAt,
		})
	}
}

func listPatientBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseIDParam(w, r, "invalid_patient_id", "patient id must be a valid UUID")
		if !ok {
			return
		}

		bookings, err := svc.ListBookingsByPatient(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toBookingDetailResponses(bookings))
	}
}

func listDoctorBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "invalid_doctor_id", "doctor id must be a valid UUID")
		if !ok {
			return
		}

		bookings, err := svc.ListBookingsByDoctor(r.Context(), doctorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toBookingDetailResponses(bookings))
	}
}

// Error mapping

func handleRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrOnlyDoctors):
		writeError(w, http.StatusForbidden, "only_doctors", err.Error())
	case errors.Is(err, booking.ErrSlotDateInPast):
		writeError(w, http.StatusBadRequest, "slot_date_in_past", err.Error())
	case errors.Is(err, booking.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, booking.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "duplicate_slot", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrOnlyPatients):
		writeError(w, http.StatusForbidden, "only_patients", err.Error())
	case errors.Is(err, booking.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, booking.ErrSlotExpired):
		writeError(w, http.StatusConflict, "slot_expired", err.Error())
	case errors.Is(err, booking.ErrStoreBusy):
		writeError(w, http.StatusServiceUnavailable, "storage_busy", "booking storage is busy, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// Helpers

func parseIDParam(w http.ResponseWriter, r *http.Request, code, details string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, details)
		return uuid.Nil, false
	}
	return id, true
}

// combineDayTime parses "2006-01-02" and "15:04" strings into the calendar day
// (midnight UTC) and the full instant on that day.
func combineDayTime(dayStr, clockStr string) (day, instant time.Time, err error) {
	day, err = time.ParseInLocation("2006-01-02", dayStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	clock, err := time.Parse("15:04", clockStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	instant = time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	return day, instant, nil
}

func toUserResponse(u *booking.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     string(u.Role),
	}
}

func toSlotResponse(s *booking.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format("2006-01-02"),
		StartTime: s.StartsAt.Format("15:04"),
		EndTime:   s.EndsAt.Format("15:04"),
		Booked:    s.Booked,
	}
}

func toBookingDetailResponses(bookings []booking.BookingDetail) []BookingDetailResponse {
	resp := make([]BookingDetailResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, BookingDetailResponse{
			ID:          b.ID,
			PatientName: b.Patient.FullName,
			DoctorName:  b.Doctor.FullName,
			Date:        b.Slot.Date.Format("2006-01-02"),
			StartTime:   b.Slot.StartsAt.Format("15:04"),
			EndTime:     b.Slot.EndsAt.Format("15:04"),
			BookedAt:    b.BookedAt,
		})
	}
	return resp
}
