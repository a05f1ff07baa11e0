package booking

import (
	"errors"
	"time"
)

// SlotWidthMinutes is the fixed discretization of the booking day. Every
// appointment starts on a slot boundary and occupies whole slots.
const SlotWidthMinutes = 15

var ErrInvalidAlignment = errors.New("start time is not aligned to the slot grid")

// SlotsForDuration returns how many consecutive slots a service of the given
// duration occupies. Partial slots round up, so a 61-minute service takes 5.
func SlotsForDuration(durationMinutes int) int {
	n := (durationMinutes + SlotWidthMinutes - 1) / SlotWidthMinutes
	if n < 1 {
		n = 1
	}
	return n
}

// SlotIndex maps a wall-clock time to its slot index within the day.
func SlotIndex(t time.Time) (int, error) {
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return 0, ErrInvalidAlignment
	}
	minutes := t.Hour()*60 + t.Minute()
	if minutes%SlotWidthMinutes != 0 {
		return 0, ErrInvalidAlignment
	}
	return minutes / SlotWidthMinutes, nil
}

// OccupiedSlots returns the contiguous run of slot indices a booking at
// start with the given duration would occupy.
func OccupiedSlots(start time.Time, durationMinutes int) ([]int, error) {
	first, err := SlotIndex(start)
	if err != nil {
		return nil, err
	}
	slots := make([]int, SlotsForDuration(durationMinutes))
	for i := range slots {
		slots[i] = first + i
	}
	return slots, nil
}

// overlaps applies the half-open interval test. Intervals that only abut,
// one ending exactly where the other begins, do not overlap.
func overlaps(aStart time.Time, aMinutes int, bStart time.Time, bMinutes int) bool {
	aEnd := aStart.Add(time.Duration(aMinutes) * time.Minute)
	bEnd := bStart.Add(time.Duration(bMinutes) * time.Minute)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// findConflict returns the first appointment whose occupied interval
// intersects the candidate interval, or nil when the candidate is free.
func findConflict(existing []Appointment, start time.Time, durationMinutes int) *Appointment {
	for i := range existing {
		if !existing[i].Status.Occupies() {
			continue
		}
		if overlaps(start, durationMinutes, existing[i].StartTime, existing[i].DurationMinutes) {
			return &existing[i]
		}
	}
	return nil
}

// dayBounds returns midnight of t's calendar day and midnight of the next.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
