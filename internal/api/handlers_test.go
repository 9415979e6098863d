package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/hospital-booking/internal/booking"
	"github.com/caredesk/hospital-booking/internal/notify"
)

// Minimal in-memory repository backing the handlers under test.
type fakeRepo struct {
	mu        sync.Mutex
	users     map[uuid.UUID]booking.User
	usernames map[string]bool
	slots     map[uuid.UUID]*booking.AvailabilitySlot
	bookings  map[uuid.UUID]*booking.Booking
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:     make(map[uuid.UUID]booking.User),
		usernames: make(map[string]bool),
		slots:     make(map[uuid.UUID]*booking.AvailabilitySlot),
		bookings:  make(map[uuid.UUID]*booking.Booking),
	}
}

func (r *fakeRepo) addUser(user *booking.User) (*booking.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usernames[user.Username] {
		return nil, booking.ErrUsernameTaken
	}
	u := *user
	u.CreatedAt = time.Now()
	r.users[u.ID] = u
	r.usernames[u.Username] = true
	return &u, nil
}

func (r *fakeRepo) CreateDoctor(_ context.Context, user *booking.User, _ *booking.DoctorProfile) (*booking.User, error) {
	return r.addUser(user)
}

func (r *fakeRepo) CreatePatient(_ context.Context, user *booking.User, _ *booking.PatientProfile) (*booking.User, error) {
	return r.addUser(user)
}

func (r *fakeRepo) GetUserByID(_ context.Context, id uuid.UUID) (*booking.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, booking.ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeRepo) ListDoctors(_ context.Context) ([]booking.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []booking.User
	for _, u := range r.users {
		if u.Role == booking.RoleDoctor {
			result = append(result, u)
		}
	}
	return result, nil
}

func (r *fakeRepo) CreateSlot(_ context.Context, slot *booking.AvailabilitySlot) (*booking.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.slots {
		if existing.DoctorID == slot.DoctorID && existing.StartsAt.Equal(slot.StartsAt) {
			return nil, booking.ErrDuplicateSlot
		}
	}
	s := *slot
	r.slots[s.ID] = &s
	copied := s
	return &copied, nil
}

func (r *fakeRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*booking.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, booking.ErrSlotNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeRepo) ListOpenSlots(_ context.Context, doctorID uuid.UUID, from time.Time) ([]booking.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []booking.AvailabilitySlot
	for _, s := range r.slots {
		if s.DoctorID == doctorID && !s.Booked && !s.Date.Before(from) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (r *fakeRepo) CreateBooking(_ context.Context, slotID, patientID uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[slotID]
	if !ok {
		return nil, booking.ErrSlotNotFound
	}
	if slot.Booked {
		return nil, booking.ErrSlotAlreadyBooked
	}
	b := &booking.Booking{
		ID:        uuid.New(),
		SlotID:    slotID,
		PatientID: patientID,
		BookedAt:  time.Now(),
	}
	r.bookings[b.ID] = b
	slot.Booked = true
	copied := *b
	return &copied, nil
}

func (r *fakeRepo) ListBookingsByPatient(_ context.Context, patientID uuid.UUID) ([]booking.BookingDetail, error) {
	return r.listDetails(func(b *booking.Booking, s *booking.AvailabilitySlot) bool {
		return b.PatientID == patientID
	})
}

func (r *fakeRepo) ListBookingsByDoctor(_ context.Context, doctorID uuid.UUID) ([]booking.BookingDetail, error) {
	return r.listDetails(func(b *booking.Booking, s *booking.AvailabilitySlot) bool {
		return s.DoctorID == doctorID
	})
}

func (r *fakeRepo) listDetails(match func(*booking.Booking, *booking.AvailabilitySlot) bool) ([]booking.BookingDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []booking.BookingDetail
	for _, b := range r.bookings {
		slot := r.slots[b.SlotID]
		if slot == nil || !match(b, slot) {
			continue
		}
		slotCopy := *slot
		patient := r.users[b.PatientID]
		doctor := r.users[slot.DoctorID]
		result = append(result, booking.BookingDetail{
			Booking: *b,
			Slot:    &slotCopy,
			Patient: &patient,
			Doctor:  &doctor,
		})
	}
	return result, nil
}

type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type nullNotifier struct{}

func (nullNotifier) Dispatch(notify.Notification) {}

// Fixtures

func newTestServer(t *testing.T) (*httptest.Server, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	svc := booking.NewService(repo, passLocker{}, nullNotifier{})
	router := NewRouter(RouterConfig{Service: svc, Env: "test", Version: "test"})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func seedDoctor(t *testing.T, repo *fakeRepo) *booking.User {
	t.Helper()
	u, err := repo.addUser(&booking.User{
		ID:       uuid.New(),
		Username: "doc-" + uuid.NewString()[:8],
		FullName: "Gregory House",
		Email:    "house@example.com",
		Role:     booking.RoleDoctor,
	})
	require.NoError(t, err)
	return u
}

func seedPatient(t *testing.T, repo *fakeRepo) *booking.User {
	t.Helper()
	u, err := repo.addUser(&booking.User{
		ID:       uuid.New(),
		Username: "pat-" + uuid.NewString()[:8],
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Role:     booking.RolePatient,
	})
	require.NoError(t, err)
	return u
}

func tomorrowStr() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
}

// Tests

func TestRegisterDoctorEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/doctors", RegisterDoctorRequest{
		Username:       "drhouse",
		FullName:       "Gregory House",
		Email:          "house@example.com",
		Specialization: "Diagnostics",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user := decodeBody[UserResponse](t, resp)
	assert.Equal(t, "doctor", user.Role)
	assert.Equal(t, "drhouse", user.Username)
	assert.NotEqual(t, uuid.Nil, user.ID)
}

func TestRegisterDoctorInvalidEmail(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/doctors", RegisterDoctorRequest{
		Username:       "drhouse",
		FullName:       "Gregory House",
		Email:          "not-an-email",
		Specialization: "Diagnostics",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_request_body", errResp.Error)
}

func TestCreateSlotEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	doctor := seedDoctor(t, repo)

	req := CreateSlotRequest{
		DoctorID:  doctor.ID.String(),
		Date:      tomorrowStr(),
		StartTime: "09:00",
		EndTime:   "09:30",
	}

	resp := postJSON(t, srv.URL+"/slots", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	slot := decodeBody[SlotResponse](t, resp)
	assert.Equal(t, doctor.ID, slot.DoctorID)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.False(t, slot.Booked)

	// Same doctor, same date and start: the storage constraint rejects it.
	resp = postJSON(t, srv.URL+"/slots", req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_slot", decodeBody[ErrorResponse](t, resp).Error)
}

func TestCreateSlotPatientForbidden(t *testing.T) {
	srv, repo := newTestServer(t)
	patient := seedPatient(t, repo)

	resp := postJSON(t, srv.URL+"/slots", CreateSlotRequest{
		DoctorID:  patient.ID.String(),
		Date:      tomorrowStr(),
		StartTime: "09:00",
		EndTime:   "09:30",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "only_doctors", decodeBody[ErrorResponse](t, resp).Error)
}

func TestCreateBookingEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	doctor := seedDoctor(t, repo)
	patient := seedPatient(t, repo)
	rival := seedPatient(t, repo)

	slotResp := postJSON(t, srv.URL+"/slots", CreateSlotRequest{
		DoctorID:  doctor.ID.String(),
		Date:      tomorrowStr(),
		StartTime: "09:00",
		EndTime:   "09:30",
	})
	require.Equal(t, http.StatusCreated, slotResp.StatusCode)
	slot := decodeBody[SlotResponse](t, slotResp)

	resp := postJSON(t, srv.URL+"/bookings", CreateBookingRequest{
		SlotID:    slot.ID.String(),
		PatientID: patient.ID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	b := decodeBody[BookingResponse](t, resp)
	assert.Equal(t, slot.ID, b.SlotID)
	assert.Equal(t, patient.ID, b.PatientID)

	// Losing attempt on the now-booked slot.
	resp = postJSON(t, srv.URL+"/bookings", CreateBookingRequest{
		SlotID:    slot.ID.String(),
		PatientID: rival.ID.String(),
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_already_booked", decodeBody[ErrorResponse](t, resp).Error)
}

func TestCreateBookingUnknownSlot(t *testing.T) {
	srv, repo := newTestServer(t)
	patient := seedPatient(t, repo)

	resp := postJSON(t, srv.URL+"/bookings", CreateBookingRequest{
		SlotID:    uuid.NewString(),
		PatientID: patient.ID.String(),
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "slot_not_found", decodeBody[ErrorResponse](t, resp).Error)
}

func TestCreateBookingDoctorForbidden(t *testing.T) {
	srv, repo := newTestServer(t)
	doctor := seedDoctor(t, repo)
	other := seedDoctor(t, repo)

	slotResp := postJSON(t, srv.URL+"/slots", CreateSlotRequest{
		DoctorID:  doctor.ID.String(),
		Date:      tomorrowStr(),
		StartTime: "10:00",
		EndTime:   "10:30",
	})
	slot := decodeBody[SlotResponse](t, slotResp)

	resp := postJSON(t, srv.URL+"/bookings", CreateBookingRequest{
		SlotID:    slot.ID.String(),
		PatientID: other.ID.String(),
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "only_patients", decodeBody[ErrorResponse](t, resp).Error)
}

func TestCreateBookingMalformedID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/bookings", map[string]string{
		"slot_id":    "not-a-uuid",
		"patient_id": uuid.NewString(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListDoctorSlotsEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	doctor := seedDoctor(t, repo)

	for _, start := range []string{"09:00", "09:30"} {
		resp := postJSON(t, srv.URL+"/slots", CreateSlotRequest{
			DoctorID:  doctor.ID.String(),
			Date:      tomorrowStr(),
			StartTime: start,
			EndTime:   start[:3] + "45",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/doctors/" + doctor.ID.String() + "/slots")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	slots := decodeBody[[]SlotResponse](t, resp)
	assert.Len(t, slots, 2)
}

func TestListPatientBookingsEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	doctor := seedDoctor(t, repo)
	patient := seedPatient(t, repo)

	slotResp := postJSON(t, srv.URL+"/slots", CreateSlotRequest{
		DoctorID:  doctor.ID.String(),
		Date:      tomorrowStr(),
		StartTime: "11:00",
		EndTime:   "11:30",
	})
	slot := decodeBody[SlotResponse](t, slotResp)

	bookResp := postJSON(t, srv.URL+"/bookings", CreateBookingRequest{
		SlotID:    slot.ID.String(),
		PatientID: patient.ID.String(),
	})
	require.Equal(t, http.StatusCreated, bookResp.StatusCode)

	resp, err := http.Get(srv.URL + "/patients/" + patient.ID.String() + "/bookings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bookings := decodeBody[[]BookingDetailResponse](t, resp)
	require.Len(t, bookings, 1)
	assert.Equal(t, doctor.FullName, bookings[0].DoctorName)
	assert.Equal(t, "11:00", bookings[0].StartTime)
}

func TestLiveness(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	live := decodeBody[LivenessResponse](t, resp)
	assert.Equal(t, "ok", live.Status)
}
