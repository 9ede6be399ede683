package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name   string
		in     time.Time
		months int
		want   time.Time
	}{
		{"plain", date(2025, 10, 17), 3, date(2026, 1, 17)},
		{"month end clamps", date(2025, 1, 31), 1, date(2025, 2, 28)},
		{"leap year", date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"year roll", date(2025, 11, 30), 3, date(2026, 2, 28)},
		{"twelve months", date(2025, 10, 17), 12, date(2026, 10, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonths(tt.in, tt.months))
		})
	}
}

func TestTruncateToDate(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	in := time.Date(2025, 10, 18, 23, 45, 0, 0, shanghai)
	assert.Equal(t, date(2025, 10, 18), TruncateToDate(in))
}
