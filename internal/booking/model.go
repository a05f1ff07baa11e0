package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Occupies reports whether appointments in this status hold their time range
// on the business calendar. Cancelled bookings free their slots but are kept
// for history.
func (s Status) Occupies() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

type Appointment struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	ServiceID       uuid.UUID
	ClientID        uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndTime is the exclusive end of the occupied interval.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type Business struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceOffering is one bookable entry in a business's catalog. Its
// duration is copied onto each appointment at reservation time, so later
// catalog edits never resize existing bookings.
type ServiceOffering struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Name            string
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Client struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OperatingWindow is one open interval of a business day, expressed in
// minutes since midnight so it can be anchored to any calendar date.
type OperatingWindow struct {
	OpenMinute  int
	CloseMinute int
}

// BookedSlot is one occupied interval on a business calendar, shaped for
// display to callers.
type BookedSlot struct {
	AppointmentID   uuid.UUID
	StartTime       time.Time
	DurationMinutes int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
