package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSinkSend(t *testing.T) {
	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, time.Second)
	err := sink.Send(context.Background(), Notification{
		Kind:      KindBookingConfirmation,
		Recipient: "patient@example.com",
		Data: map[string]string{
			"patient_name": "Jane Doe",
			"doctor_name":  "Gregory House",
			"date":         "2026-09-01",
			"time":         "09:00",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "BOOKING_CONFIRMATION", got.Action)
	assert.Equal(t, "patient@example.com", got.To)
	assert.Equal(t, "Gregory House", got.Data["doctor_name"])
}

func TestHTTPSinkNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, time.Second)
	err := sink.Send(context.Background(), Notification{Kind: KindSignupWelcome, Recipient: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPSinkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	sink := NewHTTPSink(srv.URL, 200*time.Millisecond)
	err := sink.Send(context.Background(), Notification{Kind: KindSignupWelcome, Recipient: "x@example.com"})
	require.Error(t, err)
}
