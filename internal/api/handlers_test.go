package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/localbook/booking/internal/booking"
	"github.com/localbook/booking/internal/config"
	redisclient "github.com/localbook/booking/internal/redis"
)

type passthroughLocker struct{}

func (passthroughLocker) WithBusinessLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// contendedLocker refuses every acquisition, as the Redis locker does once
// the bounded wait elapses.
type contendedLocker struct{}

func (contendedLocker) WithBusinessLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type testEnv struct {
	router     http.Handler
	businessID uuid.UUID
	serviceID  uuid.UUID
	clientID   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLocker(t, passthroughLocker{})
}

func newTestEnvWithLocker(t *testing.T, locker redisclient.Locker) *testEnv {
	t.Helper()

	repo := booking.NewMemoryRepository()
	env := &testEnv{
		businessID: uuid.New(),
		serviceID:  uuid.New(),
		clientID:   uuid.New(),
	}

	repo.AddBusiness(booking.Business{ID: env.businessID, Name: "Corner Salon"})
	repo.AddService(booking.ServiceOffering{ID: env.serviceID, BusinessID: env.businessID, Name: "Cut", DurationMinutes: 60})
	repo.AddClient(booking.Client{ID: env.clientID, Name: "Grace"})
	repo.AddOperatingWindow(env.businessID, time.Monday, booking.OperatingWindow{OpenMinute: 9 * 60, CloseMinute: 17 * 60})

	svc := booking.NewService(repo, repo, locker, config.Config{})
	env.router = NewRouter(RouterConfig{Service: svc, Env: "test", Version: "test"})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createBooking(t *testing.T, start time.Time) BookingResponse {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
		BusinessID: env.businessID.String(),
		ServiceID:  env.serviceID.String(),
		ClientID:   env.clientID.String(),
		StartTime:  start.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d body %s", rec.Code, rec.Body.String())
	}

	var resp BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

var testMonday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestCreateBookingEndpoint(t *testing.T) {
	t.Run("returns 201 with the confirmed booking", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.createBooking(t, testMonday.Add(10*time.Hour))

		if resp.Status != "confirmed" {
			t.Errorf("status = %q, want confirmed", resp.Status)
		}
		if resp.DurationMinutes != 60 {
			t.Errorf("duration = %d, want 60", resp.DurationMinutes)
		}
	})

	t.Run("returns 409 with the conflicting appointment id", func(t *testing.T) {
		env := newTestEnv(t)

		existing := env.createBooking(t, testMonday.Add(10*time.Hour))

		rec := env.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
			BusinessID: env.businessID.String(),
			ServiceID:  env.serviceID.String(),
			ClientID:   env.clientID.String(),
			StartTime:  testMonday.Add(10*time.Hour + 30*time.Minute).Format(time.RFC3339),
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}

		var errResp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.Error != "booking_conflict" {
			t.Errorf("error = %q, want booking_conflict", errResp.Error)
		}
		if errResp.ConflictingAppointmentID == nil || *errResp.ConflictingAppointmentID != existing.ID {
			t.Errorf("conflicting_appointment_id = %v, want %s", errResp.ConflictingAppointmentID, existing.ID)
		}
	})

	t.Run("returns 400 for a misaligned start time", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
			BusinessID: env.businessID.String(),
			ServiceID:  env.serviceID.String(),
			ClientID:   env.clientID.String(),
			StartTime:  testMonday.Add(10*time.Hour + 7*time.Minute).Format(time.RFC3339),
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("returns 404 for an unknown client", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
			BusinessID: env.businessID.String(),
			ServiceID:  env.serviceID.String(),
			ClientID:   uuid.NewString(),
			StartTime:  testMonday.Add(10 * time.Hour).Format(time.RFC3339),
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("returns 409 business_busy under lock contention", func(t *testing.T) {
		env := newTestEnvWithLocker(t, contendedLocker{})

		rec := env.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
			BusinessID: env.businessID.String(),
			ServiceID:  env.serviceID.String(),
			ClientID:   env.clientID.String(),
			StartTime:  testMonday.Add(10 * time.Hour).Format(time.RFC3339),
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}

		var errResp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.Error != "business_busy" {
			t.Errorf("error = %q, want business_busy so clients can retry the same slot", errResp.Error)
		}
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestUpdateBookingStatusEndpoint(t *testing.T) {
	t.Run("cancels a confirmed booking", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createBooking(t, testMonday.Add(10*time.Hour))

		rec := env.do(t, http.MethodPatch, "/bookings/"+created.ID.String()+"/status",
			UpdateBookingStatusRequest{Status: "cancelled"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp BookingResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Status != "cancelled" {
			t.Errorf("status = %q, want cancelled", resp.Status)
		}
	})

	t.Run("returns 409 for a terminal booking", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createBooking(t, testMonday.Add(10*time.Hour))

		path := "/bookings/" + created.ID.String() + "/status"
		if rec := env.do(t, http.MethodPatch, path, UpdateBookingStatusRequest{Status: "cancelled"}); rec.Code != http.StatusOK {
			t.Fatalf("first cancel failed: %d", rec.Code)
		}

		rec := env.do(t, http.MethodPatch, path, UpdateBookingStatusRequest{Status: "completed"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("rejects statuses outside the state machine", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createBooking(t, testMonday.Add(10*time.Hour))

		rec := env.do(t, http.MethodPatch, "/bookings/"+created.ID.String()+"/status",
			UpdateBookingStatusRequest{Status: "confirmed"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestBookedSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	second := env.createBooking(t, testMonday.Add(14*time.Hour))
	first := env.createBooking(t, testMonday.Add(9*time.Hour))

	rec := env.do(t, http.MethodGet,
		fmt.Sprintf("/businesses/%s/booked-slots?date=%s", env.businessID, testMonday.Format("2006-01-02")), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var slots []BookedSlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].AppointmentID != first.ID || slots[1].AppointmentID != second.ID {
		t.Error("slots should be ordered by start time ascending")
	}
}

func TestFreeSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.createBooking(t, testMonday.Add(10*time.Hour))

	rec := env.do(t, http.MethodGet,
		fmt.Sprintf("/businesses/%s/free-slots?date=%s&service_id=%s",
			env.businessID, testMonday.Format("2006-01-02"), env.serviceID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp FreeSlotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	ten := testMonday.Add(10 * time.Hour)
	for _, s := range resp.FreeSlotStarts {
		if s.Before(ten.Add(time.Hour)) && ten.Before(s.Add(time.Hour)) {
			t.Errorf("free start %v intersects the 10:00 booking", s)
		}
	}
	if len(resp.FreeSlotStarts) == 0 {
		t.Fatal("expected free slots outside the booked hour")
	}

	t.Run("returns 400 for a bad date", func(t *testing.T) {
		rec := env.do(t, http.MethodGet,
			fmt.Sprintf("/businesses/%s/free-slots?date=junk&service_id=%s", env.businessID, env.serviceID), nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
