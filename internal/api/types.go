package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	BusinessID string `json:"business_id"`
	ServiceID  string `json:"service_id"`
	ClientID   string `json:"client_id"`
	StartTime  string `json:"start_time"`
	Notes      string `json:"notes,omitempty"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status"`
}

type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	BusinessID      uuid.UUID `json:"business_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	ClientID        uuid.UUID `json:"client_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
}

type BookedSlotResponse struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type FreeSlotsResponse struct {
	Date           string      `json:"date"`
	ServiceID      uuid.UUID   `json:"service_id"`
	FreeSlotStarts []time.Time `json:"free_slot_starts"`
}

type ErrorResponse struct {
	Error                    string     `json:"error"`
	Details                  string     `json:"details,omitempty"`
	ConflictingAppointmentID *uuid.UUID `json:"conflicting_appointment_id,omitempty"`
}
