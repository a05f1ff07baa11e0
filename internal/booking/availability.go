package booking

import (
	"sort"
	"time"
)

// FreeSlotStarts enumerates every slot-aligned start time within the given
// operating windows at which a service of the given duration fits without
// touching any occupied interval. The service must also end inside its
// window. day anchors the minute-of-day windows to a calendar date.
func FreeSlotStarts(day time.Time, windows []OperatingWindow, booked []Appointment, serviceMinutes int) []time.Time {
	if serviceMinutes <= 0 {
		return nil
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	var starts []time.Time
	for _, w := range windows {
		for m := alignUp(w.OpenMinute); m+serviceMinutes <= w.CloseMinute; m += SlotWidthMinutes {
			start := midnight.Add(time.Duration(m) * time.Minute)
			if findConflict(booked, start, serviceMinutes) == nil {
				starts = append(starts, start)
			}
		}
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}

// alignUp rounds a minute-of-day up to the next slot boundary.
func alignUp(minute int) int {
	if r := minute % SlotWidthMinutes; r != 0 {
		return minute + SlotWidthMinutes - r
	}
	return minute
}
