package domain

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const dateLayout = "2006-01-02"

// DefaultReportPeriod marks period boundaries every Monday at midnight.
const DefaultReportPeriod = "0 0 * * 1"

const maxPeriodLookback = 1024 * 24 * time.Hour

var periodParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type DateCategory int

const (
	Before DateCategory = iota
	Within
	After
)

// Window is an inclusive range of calendar dates. Start and End are
// midnight in the same location.
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) Window {
	loc := start.Location()
	return Window{Start: truncateDay(start), End: truncateDay(end.In(loc))}
}

func (w Window) Location() *time.Location {
	return w.Start.Location()
}

func (w Window) StartDate() string {
	return w.Start.Format(dateLayout)
}

func (w Window) EndDate() string {
	return w.End.Format(dateLayout)
}

func (w Window) String() string {
	return w.StartDate() + " ~ " + w.EndDate()
}

// Categorize places t before, within or after the window by calendar date.
// Both boundary dates count as within.
func (w Window) Categorize(t time.Time) DateCategory {
	return CategorizeDate(t, w)
}

func (w Window) Contains(t time.Time) bool {
	return CategorizeDate(t, w) == Within
}

func CategorizeDate(t time.Time, w Window) DateCategory {
	day := truncateDay(t.In(w.Location()))
	if day.Before(w.Start) {
		return Before
	}
	if day.After(w.End) {
		return After
	}
	return Within
}

// Label renders the category the way it appears in reports and chart legends.
func (c DateCategory) Label(w Window) string {
	switch c {
	case Before:
		return "< " + w.StartDate()
	case After:
		return "> " + w.EndDate()
	default:
		return w.String()
	}
}

func (c DateCategory) String() string {
	switch c {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "in range"
	}
}

// PreviousWeekWindow returns Monday through Sunday of the week before now.
func PreviousWeekWindow(now time.Time) Window {
	weekday := now.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	daysFromMonday := int(weekday) - int(time.Monday)
	monday := time.Date(now.Year(), now.Month(), now.Day()-daysFromMonday-7, 0, 0, 0, 0, now.Location())
	return NewWindow(monday, monday.AddDate(0, 0, 6))
}

func ParsePeriod(spec string) (cron.Schedule, error) {
	return periodParser.Parse(spec)
}

// PeriodWindow returns the last complete period before now. Period boundaries
// are the activations of sched; the window runs from the date of the
// second-latest boundary at or before now up to the day before the date of
// the latest one, whatever the boundaries' time of day.
func PeriodWindow(sched cron.Schedule, now time.Time) (Window, error) {
	for lookback := 24 * time.Hour; lookback <= maxPeriodLookback; lookback *= 2 {
		prev, last, ok := lastTwoBoundaries(sched, now.Add(-lookback), now)
		if !ok {
			continue
		}
		start := truncateDay(prev)
		end := truncateDay(last).AddDate(0, 0, -1)
		if end.Before(start) {
			return Window{}, fmt.Errorf("period from %s to %s is shorter than a day", prev.Format(time.RFC3339), last.Format(time.RFC3339))
		}
		return NewWindow(start, end), nil
	}
	return Window{}, fmt.Errorf("no complete period within %d days before %s", int(maxPeriodLookback/(24*time.Hour)), now.Format(time.RFC3339))
}

func lastTwoBoundaries(sched cron.Schedule, from, now time.Time) (time.Time, time.Time, bool) {
	var prev, last time.Time
	count := 0
	// Next is strictly after its argument; step back so a boundary at from counts.
	for t := sched.Next(from.Add(-time.Second)); !t.IsZero() && !t.After(now); t = sched.Next(t) {
		prev, last = last, t
		count++
	}
	return prev, last, count >= 2
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
