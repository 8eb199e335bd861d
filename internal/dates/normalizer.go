package dates

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"imagery-engine/internal/common"
)

// ErrInvalidDateFormat reports a date expression that could not be parsed.
// Callers are expected to substitute a default window rather than abort.
var ErrInvalidDateFormat = errors.New("invalid date format")

// Mode distinguishes an explicit window from a "latest imagery" request.
type Mode int

const (
	ModeExplicit Mode = iota
	ModeLatest
)

func (m Mode) String() string {
	if m == ModeLatest {
		return "LATEST"
	}
	return "EXPLICIT"
}

// Window is a normalized date range. Mode ModeLatest means both bounds are
// zero until the selector resolves a concrete trailing window at query time.
type Window struct {
	Start time.Time
	End   time.Time
	Mode  Mode
}

// Latest returns the LATEST sentinel window.
func Latest() Window {
	return Window{Mode: ModeLatest}
}

// Days returns the number of calendar days the window spans.
func (w Window) Days() int {
	if w.Mode == ModeLatest {
		return 0
	}
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Midpoint returns the middle of the window.
func (w Window) Midpoint() time.Time {
	return w.Start.Add(w.End.Sub(w.Start) / 2)
}

func (w Window) String() string {
	if w.Mode == ModeLatest {
		return "latest"
	}
	return fmt.Sprintf("%s to %s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// granularity of a parsed date expression, used to infer a missing end bound.
type granularity int

const (
	granDay granularity = iota
	granMonth
	granYear
)

// Normalizer turns heterogeneous date expressions into Windows. The Now hook
// exists so tests can pin the clock.
type Normalizer struct {
	Now func() time.Time
}

// DefaultTrailingDays is the window used when no usable date input exists.
const DefaultTrailingDays = 90

// New returns a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{Now: time.Now}
}

// Default returns the trailing 90-day window ending today, the substitute
// window callers fall back to on ErrInvalidDateFormat or empty input.
func (n *Normalizer) Default() Window {
	now := n.Now().UTC().Truncate(24 * time.Hour)
	return Window{Start: now.AddDate(0, 0, -DefaultTrailingDays), End: now}
}

// Range normalizes a (start, end, year) triple into a Window.
//
// Explicit start/end win over a conflicting year. A bare year expands to the
// full calendar year. A start without an end widens by granularity: year
// inputs run to Dec 31, month inputs gain two months, and day inputs run to
// today. "latest" anywhere in the start produces the LATEST sentinel. Empty
// input yields the default trailing window.
func (n *Normalizer) Range(start, end string, year int) (Window, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if isLatest(start) || isLatest(end) {
		return Latest(), nil
	}

	if start == "" && end == "" {
		if year > 0 {
			return yearWindow(year), nil
		}
		log.Printf("[DateNormalizer] No date input, using default trailing %d-day window", DefaultTrailingDays)
		return n.Default(), nil
	}

	if start == "" && end != "" {
		// An end without a start spans the end expression's natural range:
		// a bare year covers that year, a month that month, a date one day.
		endT, gran, err := parseExpression(end)
		if err != nil {
			return Window{}, err
		}
		w := Window{Start: endT, End: endOfGranularity(endT, gran)}
		return w, nil
	}

	startT, startGran, err := parseExpression(start)
	if err != nil {
		return Window{}, err
	}

	var endT time.Time
	if end == "" {
		endT = inferEnd(startT, startGran, n.Now().UTC())
		log.Printf("[DateNormalizer] No end date, inferred %s from %s granularity",
			endT.Format("2006-01-02"), granName(startGran))
	} else {
		t, gran, err := parseExpression(end)
		if err != nil {
			return Window{}, err
		}
		endT = endOfGranularity(t, gran)
	}

	if endT.Before(startT) {
		return Window{}, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidDateFormat, endT.Format("2006-01-02"), startT.Format("2006-01-02"))
	}

	if year > 0 {
		// Explicit start/end win over a conflicting year by contract.
		if startT.Year() != year && endT.Year() != year {
			log.Printf("[DateNormalizer] Year %d conflicts with explicit range %s..%s, explicit range wins",
				year, startT.Format("2006-01-02"), endT.Format("2006-01-02"))
		}
	}

	return Window{Start: startT, End: endT}, nil
}

// Expression normalizes a single date expression into a Window: a year
// becomes the full calendar year, a month+year the full calendar month, a
// plain date a one-day window.
func (n *Normalizer) Expression(raw string) (Window, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.Default(), nil
	}
	if isLatest(raw) {
		return Latest(), nil
	}
	t, gran, err := parseExpression(raw)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: t, End: endOfGranularity(t, gran)}, nil
}

func isLatest(s string) bool {
	return strings.Contains(strings.ToLower(s), "latest")
}

func yearWindow(year int) Window {
	return Window{
		Start: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

var (
	yearOnlyRe  = regexp.MustCompile(`^\d{4}$`)
	monthYearRe = regexp.MustCompile(`^(?i)([a-z]+)\s+(\d{4})$`)
	numMonthRe  = regexp.MustCompile(`^(\d{1,2})[/-](\d{4})$`)
	yearMonthRe = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})$`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// parseExpression parses one date expression and reports its granularity.
func parseExpression(s string) (time.Time, granularity, error) {
	if yearOnlyRe.MatchString(s) {
		year, _ := strconv.Atoi(s)
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), granYear, nil
	}

	if m := monthYearRe.FindStringSubmatch(s); m != nil {
		month, ok := monthNames[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, 0, fmt.Errorf("%w: unknown month %q", ErrInvalidDateFormat, m[1])
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), granMonth, nil
	}

	if m := numMonthRe.FindStringSubmatch(s); m != nil {
		monthNum, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if monthNum < 1 || monthNum > 12 {
			return time.Time{}, 0, fmt.Errorf("%w: month %d out of range", ErrInvalidDateFormat, monthNum)
		}
		return time.Date(year, time.Month(monthNum), 1, 0, 0, 0, 0, time.UTC), granMonth, nil
	}

	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		monthNum, _ := strconv.Atoi(m[2])
		if monthNum < 1 || monthNum > 12 {
			return time.Time{}, 0, fmt.Errorf("%w: month %d out of range", ErrInvalidDateFormat, monthNum)
		}
		return time.Date(year, time.Month(monthNum), 1, 0, 0, 0, 0, time.UTC), granMonth, nil
	}

	if t, err := common.ParseISO8601(s); err == nil {
		return t, granDay, nil
	}

	return time.Time{}, 0, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
}

// endOfGranularity expands a parsed expression to the end of its natural
// span: year to Dec 31, month to the last day of the month, day to itself.
func endOfGranularity(t time.Time, gran granularity) time.Time {
	switch gran {
	case granYear:
		return time.Date(t.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	case granMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	default:
		return t
	}
}

// inferEnd picks the end bound for a start-only input. Coarser inputs imply
// broader intended coverage: a year runs to its Dec 31, a month gains two
// months, a plain date runs to today.
func inferEnd(start time.Time, gran granularity, now time.Time) time.Time {
	switch gran {
	case granYear:
		return time.Date(start.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	case granMonth:
		return start.AddDate(0, 2, -1)
	default:
		return now.Truncate(24 * time.Hour)
	}
}

func granName(g granularity) string {
	switch g {
	case granYear:
		return "year"
	case granMonth:
		return "month"
	default:
		return "day"
	}
}
