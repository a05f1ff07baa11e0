package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBusinessNotFound    = errors.New("business not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Directory exposes the business-profile and identity lookups the booking
// core depends on. Ownership of these records lives outside the ledger; the
// core treats the ids as opaque.
type Directory interface {
	GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*ServiceOffering, error)
	GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error)

	// OperatingWindows returns the open intervals for a business on the
	// given weekday, ordered by opening minute.
	OperatingWindows(ctx context.Context, businessID uuid.UUID, weekday time.Weekday) ([]OperatingWindow, error)
}

// Repository contains all appointment store interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListOccupying returns the confirmed and completed appointments for a
	// business whose occupied interval intersects [from, to), ordered by
	// start time ascending.
	ListOccupying(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]Appointment, error)

	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Completion worker
	FindFinishedConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
