package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository and Directory. It backs unit
// tests and the load simulator's invariant check, and mirrors the Postgres
// store's exclusion backstop: an insert that overlaps a surviving booking
// fails even if the caller skipped the business lock.
type MemoryRepository struct {
	mu           sync.RWMutex
	businesses   map[uuid.UUID]Business
	services     map[uuid.UUID]ServiceOffering
	clients      map[uuid.UUID]Client
	windows      map[uuid.UUID]map[time.Weekday][]OperatingWindow
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		businesses:   make(map[uuid.UUID]Business),
		services:     make(map[uuid.UUID]ServiceOffering),
		clients:      make(map[uuid.UUID]Client),
		windows:      make(map[uuid.UUID]map[time.Weekday][]OperatingWindow),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// Fixture helpers

func (r *MemoryRepository) AddBusiness(b Business) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.businesses[b.ID] = b
}

func (r *MemoryRepository) AddService(s ServiceOffering) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
}

func (r *MemoryRepository) AddClient(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

func (r *MemoryRepository) AddOperatingWindow(businessID uuid.UUID, weekday time.Weekday, w OperatingWindow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byDay, ok := r.windows[businessID]
	if !ok {
		byDay = make(map[time.Weekday][]OperatingWindow)
		r.windows[businessID] = byDay
	}
	byDay[weekday] = append(byDay[weekday], w)
}

// Directory methods

func (r *MemoryRepository) GetBusinessByID(_ context.Context, id uuid.UUID) (*Business, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) GetServiceByID(_ context.Context, id uuid.UUID) (*ServiceOffering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) GetClientByID(_ context.Context, id uuid.UUID) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) OperatingWindows(_ context.Context, businessID uuid.UUID, weekday time.Weekday) ([]OperatingWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDay, ok := r.windows[businessID]
	if !ok {
		return nil, nil
	}
	ws := make([]OperatingWindow, len(byDay[weekday]))
	copy(ws, byDay[weekday])
	sort.Slice(ws, func(i, j int) bool { return ws[i].OpenMinute < ws[j].OpenMinute })
	return ws, nil
}

// Repository methods

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListOccupying(_ context.Context, businessID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.BusinessID != businessID || !a.Status.Occupies() {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime().After(from) {
			result = append(result, a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Exclusion backstop, same contract as the Postgres constraint.
	for _, other := range r.appointments {
		if other.BusinessID != appt.BusinessID || !other.Status.Occupies() {
			continue
		}
		if overlaps(appt.StartTime, appt.DurationMinutes, other.StartTime, other.DurationMinutes) {
			return nil, &ConflictError{ConflictingID: other.ID}
		}
	}

	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.appointments[appt.ID] = appt

	created := appt
	return &created, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a

	updated := a
	return &updated, nil
}

func (r *MemoryRepository) FindFinishedConfirmed(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusConfirmed && a.EndTime().Before(cutoff) {
			result = append(result, a)
		}
	}

	return result, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
