package cerba

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piemonte-health/callbridge/internal/booking"
)

func bookingRequestFixture() booking.BookingRequest {
	return booking.BookingRequest{
		IdempotencyKey: "idem-1",
		Slot:           booking.Slot{CenterUUID: "c1", Start: time.Now(), ServiceUUIDs: []string{"s1"}},
		Patient:        booking.Patient{FirstName: "Mario", Surname: "Rossi"},
		ServiceUUIDs:   []string{"s1"},
	}
}

func TestGetHealthCentersRejectsInvalidGender(t *testing.T) {
	c := New("http://localhost", "token")
	_, err := c.GetHealthCenters(context.Background(), []string{"s1"}, "x", "19900101", "Torino")
	assert.Error(t, err)
}

func TestGetHealthCentersJoinsAddressFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"uuid": "c1", "name": "Centro Test", "address": "Via Roma", "street_number": "10", "city": "Torino"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	centers, err := c.GetHealthCenters(context.Background(), []string{"s1"}, "f", "19900101", "Torino")
	require.NoError(t, err)
	require.Len(t, centers, 1)
	assert.Equal(t, "Via Roma 10, Torino", centers[0].Address)
}

func TestSearchPatientByPhoneSwallowsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	patients, err := c.SearchPatientByPhone(context.Background(), "+393331234567")
	require.NoError(t, err)
	assert.Nil(t, patients)
}

func TestSearchPatientByPhoneEmptyPhoneShortCircuits(t *testing.T) {
	c := New("http://localhost", "secret")
	patients, err := c.SearchPatientByPhone(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, patients)
}

func TestCommitBookingReturnsConfirmation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"booking_code": "BK-1", "cost": 42.5})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	conf, err := c.CommitBooking(context.Background(), bookingRequestFixture())
	require.NoError(t, err)
	assert.Equal(t, "BK-1", conf.BookingCode)
	assert.Equal(t, 42.5, conf.Cost)
}
