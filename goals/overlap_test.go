package goals

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRangesOverlap(t *testing.T) {
	cases := []struct {
		name                           string
		startA, endA, startB, endB     time.Time
		want                           bool
	}{
		{
			name:   "candidate starts inside existing",
			startA: day(2025, 6, 5), endA: day(2025, 6, 15),
			startB: day(2025, 6, 1), endB: day(2025, 6, 10),
			want: true,
		},
		{
			name:   "candidate ends inside existing",
			startA: day(2025, 5, 25), endA: day(2025, 6, 3),
			startB: day(2025, 6, 1), endB: day(2025, 6, 10),
			want: true,
		},
		{
			name:   "candidate fully contains existing",
			startA: day(2025, 5, 1), endA: day(2025, 7, 1),
			startB: day(2025, 6, 1), endB: day(2025, 6, 10),
			want: true,
		},
		{
			name:   "identical ranges",
			startA: day(2025, 6, 1), endA: day(2025, 6, 7),
			startB: day(2025, 6, 1), endB: day(2025, 6, 7),
			want: true,
		},
		{
			name:   "touching boundaries overlap because ranges are inclusive",
			startA: day(2025, 6, 7), endA: day(2025, 6, 14),
			startB: day(2025, 6, 1), endB: day(2025, 6, 7),
			want: true,
		},
		{
			name:   "disjoint before",
			startA: day(2025, 5, 1), endA: day(2025, 5, 31),
			startB: day(2025, 6, 1), endB: day(2025, 6, 30),
			want: false,
		},
		{
			name:   "disjoint after",
			startA: day(2025, 7, 1), endA: day(2025, 7, 31),
			startB: day(2025, 6, 1), endB: day(2025, 6, 30),
			want: false,
		},
		{
			name:   "adjacent days do not overlap",
			startA: day(2025, 6, 8), endA: day(2025, 6, 14),
			startB: day(2025, 6, 1), endB: day(2025, 6, 7),
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RangesOverlap(tc.startA, tc.endA, tc.startB, tc.endB); got != tc.want {
				t.Fatalf("RangesOverlap = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRangesOverlap_IgnoresTimeOfDay(t *testing.T) {
	startA := time.Date(2025, 6, 7, 23, 59, 0, 0, time.UTC)
	endA := time.Date(2025, 6, 14, 0, 1, 0, 0, time.UTC)
	startB := day(2025, 6, 1)
	endB := day(2025, 6, 7)
	if !RangesOverlap(startA, endA, startB, endB) {
		t.Fatal("date-only normalization must make 23:59 on the boundary day overlap")
	}
}
