// Package timeseries slices a date window into interval buckets and resolves
// imagery for each bucket concurrently, preserving bucket order in the
// output.
package timeseries

import (
	"fmt"
	"strings"
	"time"

	"imagery-engine/internal/dates"
)

// Interval is the bucketing cadence of a time series.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// MaxBuckets caps one series; a daily request over a decade is a mistake,
// not a workload.
const MaxBuckets = 500

// ParseInterval normalizes a user-supplied interval name. Empty defaults to
// monthly.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return IntervalMonthly, nil
	case "daily", "day":
		return IntervalDaily, nil
	case "weekly", "week":
		return IntervalWeekly, nil
	case "monthly", "month":
		return IntervalMonthly, nil
	case "yearly", "year", "annual":
		return IntervalYearly, nil
	}
	return "", fmt.Errorf("unknown interval %q", s)
}

// Bucket is one inclusive sub-range of the series window.
type Bucket struct {
	Start, End time.Time
}

func (b Bucket) window() dates.Window {
	return dates.Window{Start: b.Start, End: b.End, Mode: dates.ModeExplicit}
}

// Buckets materializes the full bucket list up front. Monthly and yearly
// buckets align to calendar boundaries; the first and last buckets are
// clipped to the window. Weekly buckets step seven days from the window
// start. All buckets are inclusive on both ends.
func Buckets(w dates.Window, interval Interval) ([]Bucket, error) {
	if w.Mode == dates.ModeLatest {
		return nil, fmt.Errorf("time series requires an explicit date range")
	}
	if w.End.Before(w.Start) {
		return nil, fmt.Errorf("window end %s precedes start %s", w.End, w.Start)
	}

	var buckets []Bucket
	switch interval {
	case IntervalDaily:
		for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
			buckets = append(buckets, Bucket{Start: d, End: d})
			if len(buckets) > MaxBuckets {
				return nil, tooManyBuckets(interval)
			}
		}
	case IntervalWeekly:
		for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 7) {
			buckets = append(buckets, Bucket{Start: d, End: minDate(d.AddDate(0, 0, 6), w.End)})
			if len(buckets) > MaxBuckets {
				return nil, tooManyBuckets(interval)
			}
		}
	case IntervalMonthly:
		for d := w.Start; !d.After(w.End); d = firstOfNextMonth(d) {
			buckets = append(buckets, Bucket{Start: d, End: minDate(endOfMonth(d), w.End)})
			if len(buckets) > MaxBuckets {
				return nil, tooManyBuckets(interval)
			}
		}
	case IntervalYearly:
		for d := w.Start; !d.After(w.End); d = firstOfNextYear(d) {
			buckets = append(buckets, Bucket{Start: d, End: minDate(endOfYear(d), w.End)})
			if len(buckets) > MaxBuckets {
				return nil, tooManyBuckets(interval)
			}
		}
	default:
		return nil, fmt.Errorf("unknown interval %q", interval)
	}
	return buckets, nil
}

func tooManyBuckets(interval Interval) error {
	return fmt.Errorf("%s series exceeds %d buckets; use a coarser interval or a shorter range", interval, MaxBuckets)
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

func endOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
}

func firstOfNextYear(t time.Time) time.Time {
	return time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
}
