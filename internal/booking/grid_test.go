package booking

import (
	"errors"
	"testing"
	"time"
)

func TestSlotsForDuration(t *testing.T) {
	cases := []struct {
		minutes int
		want    int
	}{
		{15, 1},
		{30, 2},
		{60, 4},
		{61, 5}, // partial slots round up
		{90, 6},
		{1, 1},
	}

	for _, c := range cases {
		if got := SlotsForDuration(c.minutes); got != c.want {
			t.Errorf("SlotsForDuration(%d) = %d, want %d", c.minutes, got, c.want)
		}
	}
}

func TestSlotIndex(t *testing.T) {
	t.Run("aligned times map to indices", func(t *testing.T) {
		cases := []struct {
			hour, minute int
			want         int
		}{
			{0, 0, 0},
			{0, 15, 1},
			{9, 0, 36},
			{10, 30, 42},
			{23, 45, 95},
		}

		for _, c := range cases {
			at := time.Date(2025, 6, 2, c.hour, c.minute, 0, 0, time.UTC)
			got, err := SlotIndex(at)
			if err != nil {
				t.Fatalf("SlotIndex(%02d:%02d): %v", c.hour, c.minute, err)
			}
			if got != c.want {
				t.Errorf("SlotIndex(%02d:%02d) = %d, want %d", c.hour, c.minute, got, c.want)
			}
		}
	})

	t.Run("misaligned minute", func(t *testing.T) {
		at := time.Date(2025, 6, 2, 10, 37, 0, 0, time.UTC)
		if _, err := SlotIndex(at); !errors.Is(err, ErrInvalidAlignment) {
			t.Fatalf("expected ErrInvalidAlignment, got %v", err)
		}
	})

	t.Run("nonzero seconds", func(t *testing.T) {
		at := time.Date(2025, 6, 2, 10, 30, 30, 0, time.UTC)
		if _, err := SlotIndex(at); !errors.Is(err, ErrInvalidAlignment) {
			t.Fatalf("expected ErrInvalidAlignment, got %v", err)
		}
	})
}

func TestOccupiedSlots(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	slots, err := OccupiedSlots(start, 60)
	if err != nil {
		t.Fatalf("OccupiedSlots: %v", err)
	}

	want := []int{36, 37, 38, 39}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slots[%d] = %d, want %d", i, slots[i], want[i])
		}
	}
}

func TestOverlaps(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
	}

	t.Run("abutting intervals do not overlap", func(t *testing.T) {
		if overlaps(at(9, 0), 60, at(10, 0), 60) {
			t.Fatal("09:00-10:00 and 10:00-11:00 should not overlap")
		}
		if overlaps(at(10, 0), 60, at(9, 0), 60) {
			t.Fatal("abutment is symmetric")
		}
	})

	t.Run("contained interval overlaps", func(t *testing.T) {
		if !overlaps(at(10, 30), 30, at(10, 0), 60) {
			t.Fatal("10:30-11:00 should overlap 10:00-11:00")
		}
	})

	t.Run("partial overlap", func(t *testing.T) {
		if !overlaps(at(9, 30), 60, at(10, 0), 60) {
			t.Fatal("09:30-10:30 should overlap 10:00-11:00")
		}
	})
}
