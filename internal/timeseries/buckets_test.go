package timeseries

import (
	"testing"
	"time"

	"imagery-engine/internal/dates"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func window(start, end time.Time) dates.Window {
	return dates.Window{Start: start, End: end, Mode: dates.ModeExplicit}
}

func TestMonthlyBucketsAlignToCalendar(t *testing.T) {
	buckets, err := Buckets(window(day(2023, 1, 15), day(2023, 12, 31)), IntervalMonthly)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if len(buckets) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(buckets))
	}
	first := buckets[0]
	if !first.Start.Equal(day(2023, 1, 15)) || !first.End.Equal(day(2023, 1, 31)) {
		t.Errorf("first bucket [%s, %s], want clipped mid-January start", first.Start, first.End)
	}
	second := buckets[1]
	if !second.Start.Equal(day(2023, 2, 1)) || !second.End.Equal(day(2023, 2, 28)) {
		t.Errorf("second bucket [%s, %s], want full February", second.Start, second.End)
	}
	last := buckets[11]
	if !last.Start.Equal(day(2023, 12, 1)) || !last.End.Equal(day(2023, 12, 31)) {
		t.Errorf("last bucket [%s, %s]", last.Start, last.End)
	}
}

func TestMonthlyLastBucketClippedToWindowEnd(t *testing.T) {
	buckets, err := Buckets(window(day(2023, 1, 1), day(2023, 3, 10)), IntervalMonthly)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if !buckets[2].End.Equal(day(2023, 3, 10)) {
		t.Errorf("last bucket ends %s, want 2023-03-10", buckets[2].End)
	}
}

func TestYearlyBuckets(t *testing.T) {
	buckets, err := Buckets(window(day(2020, 6, 1), day(2023, 3, 15)), IntervalYearly)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if len(buckets) != 4 {
		t.Fatalf("expected 4 yearly buckets, got %d", len(buckets))
	}
	if !buckets[0].Start.Equal(day(2020, 6, 1)) || !buckets[0].End.Equal(day(2020, 12, 31)) {
		t.Errorf("first bucket [%s, %s]", buckets[0].Start, buckets[0].End)
	}
	if !buckets[3].Start.Equal(day(2023, 1, 1)) || !buckets[3].End.Equal(day(2023, 3, 15)) {
		t.Errorf("last bucket [%s, %s]", buckets[3].Start, buckets[3].End)
	}
}

func TestWeeklyBucketsStepFromStart(t *testing.T) {
	buckets, err := Buckets(window(day(2023, 5, 1), day(2023, 5, 10)), IntervalWeekly)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d", len(buckets))
	}
	if !buckets[0].End.Equal(day(2023, 5, 7)) {
		t.Errorf("first week ends %s, want 2023-05-07", buckets[0].End)
	}
	if !buckets[1].Start.Equal(day(2023, 5, 8)) || !buckets[1].End.Equal(day(2023, 5, 10)) {
		t.Errorf("second week [%s, %s], want clipped to window end", buckets[1].Start, buckets[1].End)
	}
}

func TestDailyBucketsAreInclusive(t *testing.T) {
	buckets, err := Buckets(window(day(2023, 5, 1), day(2023, 5, 3)), IntervalDaily)
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 daily buckets, got %d", len(buckets))
	}
	for _, b := range buckets {
		if !b.Start.Equal(b.End) {
			t.Errorf("daily bucket [%s, %s] should span one day", b.Start, b.End)
		}
	}
}

func TestBucketsRejectLatestWindow(t *testing.T) {
	if _, err := Buckets(dates.Latest(), IntervalMonthly); err == nil {
		t.Fatal("expected error for latest-imagery window")
	}
}

func TestBucketsCapSeriesLength(t *testing.T) {
	_, err := Buckets(window(day(2020, 1, 1), day(2023, 12, 31)), IntervalDaily)
	if err == nil {
		t.Fatal("expected error for oversized daily series")
	}
}

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
	}{
		{"", IntervalMonthly},
		{"month", IntervalMonthly},
		{"WEEKLY", IntervalWeekly},
		{"day", IntervalDaily},
		{"annual", IntervalYearly},
	}
	for _, tc := range cases {
		got, err := ParseInterval(tc.in)
		if err != nil {
			t.Errorf("ParseInterval(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseInterval(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
	if _, err := ParseInterval("fortnightly"); err == nil {
		t.Error("expected error for unknown interval")
	}
}
