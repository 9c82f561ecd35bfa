package app

import (
	"testing"
	"time"
)

func TestNextReset(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name      string
		resetTime string
		want      time.Time
	}{
		{
			name:      "later today",
			resetTime: "23:00",
			want:      time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC),
		},
		{
			name:      "already passed rolls to tomorrow",
			resetTime: "00:00",
			want:      time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "exact current minute rolls to tomorrow",
			resetTime: "10:30",
			want:      time.Date(2025, 3, 11, 10, 30, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextReset(now, tc.resetTime)
			if err != nil {
				t.Fatalf("nextReset returned error: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("nextReset = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNextReset_InvalidFormat(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"", "25:00", "midnight", "10:30:00"} {
		if _, err := nextReset(now, input); err == nil {
			t.Errorf("nextReset(%q) must fail", input)
		}
	}
}
