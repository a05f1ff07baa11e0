package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/localbook/booking/internal/config"
	redisclient "github.com/localbook/booking/internal/redis"
)

const (
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingCancelled = "BOOKING_CANCELLED"
	EventBookingCompleted = "BOOKING_COMPLETED"
)

var (
	ErrInvalidDuration   = errors.New("service duration must be positive")
	ErrCrossesMidnight   = errors.New("booking must end on the day it starts")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBusinessBusy      = errors.New("business calendar is busy, please retry")
	ErrBookingConflict   = errors.New("requested time overlaps an existing booking")
)

// ConflictError reports which appointment blocked a reservation. It matches
// ErrBookingConflict under errors.Is so callers can branch without caring
// whether the conflicting id is known.
type ConflictError struct {
	ConflictingID uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.ConflictingID == uuid.Nil {
		return "requested time overlaps an existing booking"
	}
	return fmt.Sprintf("requested time overlaps appointment %s", e.ConflictingID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrBookingConflict
}

type Service struct {
	repo   Repository
	dir    Directory
	locker redisclient.Locker
	cfg    config.Config
}

func NewService(repo Repository, dir Directory, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		dir:    dir,
		locker: locker,
		cfg:    cfg,
	}
}

type ReserveInput struct {
	BusinessID uuid.UUID
	ServiceID  uuid.UUID
	ClientID   uuid.UUID
	StartTime  time.Time
	Notes      string
}

// Reserve books a service for a client. The overlap check and the insert run
// as one unit under the per-business lock, so two concurrent reservations on
// intersecting intervals cannot both commit. Validation failures are
// rejected before the lock is taken.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (*Appointment, error) {
	if _, err := s.dir.GetClientByID(ctx, in.ClientID); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	if _, err := s.dir.GetBusinessByID(ctx, in.BusinessID); err != nil {
		if errors.Is(err, ErrBusinessNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load business: %w", err)
	}

	svc, err := s.dir.GetServiceByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if svc.BusinessID != in.BusinessID {
		return nil, ErrServiceNotFound
	}
	if svc.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	if _, err := SlotIndex(in.StartTime); err != nil {
		return nil, err
	}

	dayStart, dayEnd := dayBounds(in.StartTime)
	end := in.StartTime.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	if end.After(dayEnd) {
		return nil, ErrCrossesMidnight
	}

	var created *Appointment

	err = s.locker.WithBusinessLock(ctx, in.BusinessID, func(lockCtx context.Context) error {
		existing, err := s.repo.ListOccupying(lockCtx, in.BusinessID, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("list day appointments: %w", err)
		}
		if hit := findConflict(existing, in.StartTime, svc.DurationMinutes); hit != nil {
			return &ConflictError{ConflictingID: hit.ID}
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			ID:              uuid.New(),
			BusinessID:      in.BusinessID,
			ServiceID:       in.ServiceID,
			ClientID:        in.ClientID,
			StartTime:       in.StartTime,
			DurationMinutes: svc.DurationMinutes,
			Status:          StatusConfirmed,
			Notes:           in.Notes,
		})
		if err != nil {
			return err
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventBookingConfirmed, map[string]any{
			"business_id": in.BusinessID.String(),
			"service_id":  in.ServiceID.String(),
			"client_id":   in.ClientID.String(),
			"start_time":  in.StartTime,
			"duration":    svc.DurationMinutes,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBusinessBusy
		}
		return nil, err
	}

	return created, nil
}

// Transition applies a status change to a booking. A confirmed booking may
// be completed or cancelled; completed and cancelled are terminal.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	if to != StatusCompleted && to != StatusCancelled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race against another transition on the same booking.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	event := EventBookingCompleted
	if to == StatusCancelled {
		event = EventBookingCancelled
	}
	s.logEvent(ctx, updated.ID, event, map[string]any{})

	return updated, nil
}

// GetAppointment retrieves one booking by id.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// BookedSlots lists the occupied intervals for a business on one calendar
// day, ordered by start time ascending.
func (s *Service) BookedSlots(ctx context.Context, businessID uuid.UUID, day time.Time) ([]BookedSlot, error) {
	if _, err := s.dir.GetBusinessByID(ctx, businessID); err != nil {
		if errors.Is(err, ErrBusinessNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load business: %w", err)
	}

	dayStart, dayEnd := dayBounds(day)
	appts, err := s.repo.ListOccupying(ctx, businessID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	slots := make([]BookedSlot, 0, len(appts))
	for _, a := range appts {
		slots = append(slots, BookedSlot{
			AppointmentID:   a.ID,
			StartTime:       a.StartTime,
			DurationMinutes: a.DurationMinutes,
		})
	}
	return slots, nil
}

// FreeSlots lists every start time on the given day at which the service
// could be booked, constrained to the business's operating windows for that
// weekday.
func (s *Service) FreeSlots(ctx context.Context, businessID, serviceID uuid.UUID, day time.Time) ([]time.Time, error) {
	svc, err := s.dir.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if svc.BusinessID != businessID {
		return nil, ErrServiceNotFound
	}

	windows, err := s.dir.OperatingWindows(ctx, businessID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load operating windows: %w", err)
	}

	dayStart, dayEnd := dayBounds(day)
	appts, err := s.repo.ListOccupying(ctx, businessID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	return FreeSlotStarts(day, windows, appts, svc.DurationMinutes), nil
}

// CompletePastAppointments is called periodically by the completion worker.
// It moves confirmed bookings whose end time passed the grace cutoff to
// completed, one compare-and-swap at a time so manual cancellations racing
// the sweep win cleanly.
func (s *Service) CompletePastAppointments(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.CompletionGrace)

	candidates, err := s.repo.FindFinishedConfirmed(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find finished confirmed appointments: %w", err)
	}

	for _, appt := range candidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				log.Printf("failed to complete appointment %s: %v", appt.ID, err)
			}
			continue
		}
		s.logEvent(ctx, appt.ID, EventBookingCompleted, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
