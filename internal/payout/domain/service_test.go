package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	monday := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday stays", monday, monday},
		{"monday afternoon rewinds to midnight", monday.Add(15 * time.Hour), monday},
		{"wednesday", time.Date(2026, time.August, 26, 9, 30, 0, 0, time.UTC), monday},
		{"saturday", time.Date(2026, time.August, 29, 23, 59, 59, 0, time.UTC), monday},
		{"sunday belongs to the prior monday", time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC), monday},
		{"next monday starts a new week", monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 7)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WeekStart(tc.in))
		})
	}
}
