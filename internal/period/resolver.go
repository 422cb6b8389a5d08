// Package period turns dashboard period selections into concrete date ranges and buckets.
package period

import (
	"fmt"
	"strings"
	"time"

	"survey-dashboard-service/internal/domain"
)

const dateLayout = "2006-01-02"

// Resolver resolves period tokens against an injectable clock.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

func NewResolver(loc *time.Location) *Resolver {
	return NewResolverWithClock(loc, time.Now)
}

// NewResolverWithClock is used by tests for deterministic "now".
func NewResolverWithClock(loc *time.Location, now func() time.Time) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, now: now}
}

// Location is the timezone ranges are resolved in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve maps a selection to its range, bucket and per-bucket sub-ranges.
func (r *Resolver) Resolve(sel domain.PeriodSelection) (domain.ResolvedPeriod, error) {
	now := r.now().In(r.loc)
	var (
		rng    domain.DateRange
		bucket domain.Bucket
	)
	switch sel.Token {
	case domain.PeriodToday:
		rng = domain.DateRange{Start: startOfDay(now), End: now}
		bucket = domain.BucketHour
	case domain.PeriodLast30Days:
		rng = domain.DateRange{Start: now.AddDate(0, 0, -30), End: now}
		bucket = domain.BucketWeek
	case domain.PeriodLast3Months:
		rng = domain.DateRange{Start: subMonths(now, 3), End: now}
		bucket = domain.BucketMonth
	case domain.PeriodLast365Days:
		rng = domain.DateRange{Start: now.AddDate(0, 0, -365), End: now}
		bucket = domain.BucketYear
	case domain.PeriodAllTime:
		rng = domain.DateRange{End: now}
		bucket = domain.BucketYear
	case domain.PeriodCustom:
		custom, err := ParseCustomRange(sel.CustomRange, r.loc)
		if err != nil {
			return domain.ResolvedPeriod{}, err
		}
		rng = custom
		bucket = domain.BucketCustom
	default:
		return domain.ResolvedPeriod{}, fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, sel.Token)
	}
	return domain.ResolvedPeriod{
		Token:   sel.Token,
		Range:   rng,
		Bucket:  bucket,
		Buckets: Split(rng, bucket),
	}, nil
}

// Previous resolves the window of equal length right before the selection.
// all-time has no previous window and reports ok=false.
func (r *Resolver) Previous(sel domain.PeriodSelection) (domain.ResolvedPeriod, bool, error) {
	cur, err := r.Resolve(sel)
	if err != nil {
		return domain.ResolvedPeriod{}, false, err
	}
	var rng domain.DateRange
	switch sel.Token {
	case domain.PeriodAllTime:
		return domain.ResolvedPeriod{}, false, nil
	case domain.PeriodToday:
		rng = domain.DateRange{Start: cur.Range.Start.AddDate(0, 0, -1), End: cur.Range.End.AddDate(0, 0, -1)}
	case domain.PeriodLast30Days:
		rng = domain.DateRange{Start: cur.Range.Start.AddDate(0, 0, -30), End: cur.Range.Start.Add(-time.Nanosecond)}
	case domain.PeriodLast3Months:
		rng = domain.DateRange{Start: subMonths(cur.Range.Start, 3), End: cur.Range.Start.Add(-time.Nanosecond)}
	case domain.PeriodLast365Days:
		rng = domain.DateRange{Start: cur.Range.Start.AddDate(0, 0, -365), End: cur.Range.Start.Add(-time.Nanosecond)}
	case domain.PeriodCustom:
		days := cur.Range.Days() + 1
		rng = domain.DateRange{Start: cur.Range.Start.AddDate(0, 0, -days), End: cur.Range.Start.Add(-time.Nanosecond)}
	}
	return domain.ResolvedPeriod{
		Token:   sel.Token,
		Range:   rng,
		Bucket:  cur.Bucket,
		Buckets: Split(rng, cur.Bucket),
	}, true, nil
}

// Year is the calendar year in the resolver's timezone.
func (r *Resolver) Year(year int) domain.DateRange {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, r.loc)
	return domain.DateRange{Start: start, End: start.AddDate(1, 0, 0).Add(-time.Nanosecond)}
}

// ParseCustomRange accepts "2024-01-01 to 2024-03-31", "2024-01-01 - 2024-03-31" or a single date.
// The end date is inclusive up to the last instant of that day.
func ParseCustomRange(raw string, loc *time.Location) (domain.DateRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DateRange{}, fmt.Errorf("%w: empty range", domain.ErrInvalidCustomRange)
	}
	from, to := raw, raw
	for _, sep := range []string{" to ", " - "} {
		if a, b, ok := strings.Cut(raw, sep); ok {
			from, to = strings.TrimSpace(a), strings.TrimSpace(b)
			break
		}
	}
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("%w: %q", domain.ErrInvalidCustomRange, raw)
	}
	endDay, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("%w: %q", domain.ErrInvalidCustomRange, raw)
	}
	if endDay.Before(start) {
		return domain.DateRange{}, fmt.Errorf("%w: end before start in %q", domain.ErrInvalidCustomRange, raw)
	}
	return domain.DateRange{Start: start, End: endDay.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

// Split cuts a range into one sub-range per bucket crossed, clipped to the range.
// Unbounded and custom ranges stay whole.
func Split(rng domain.DateRange, bucket domain.Bucket) []domain.DateRange {
	if rng.Unbounded() || bucket == domain.BucketCustom {
		return []domain.DateRange{rng}
	}
	var (
		cursor time.Time
		next   func(time.Time) time.Time
	)
	s := rng.Start
	switch bucket {
	case domain.BucketHour:
		cursor = time.Date(s.Year(), s.Month(), s.Day(), s.Hour(), 0, 0, 0, s.Location())
		next = func(t time.Time) time.Time { return t.Add(time.Hour) }
	case domain.BucketDay:
		cursor = startOfDay(s)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case domain.BucketWeek:
		cursor = startOfWeek(s)
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case domain.BucketMonth:
		cursor = time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, s.Location())
		next = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case domain.BucketYear:
		cursor = time.Date(s.Year(), time.January, 1, 0, 0, 0, 0, s.Location())
		next = func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	default:
		return []domain.DateRange{rng}
	}

	var out []domain.DateRange
	for !cursor.After(rng.End) {
		upper := next(cursor)
		part := domain.DateRange{Start: cursor, End: upper.Add(-time.Nanosecond)}
		if part.Start.Before(rng.Start) {
			part.Start = rng.Start
		}
		if part.End.After(rng.End) {
			part.End = rng.End
		}
		out = append(out, part)
		cursor = upper
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

// subMonths moves back n calendar months, clamping to the last day of the target month.
func subMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, -n, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
