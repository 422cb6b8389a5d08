package domain

import "time"

// PeriodToken is one of the fixed dashboard period choices.
type PeriodToken string

const (
	PeriodToday        PeriodToken = "today"
	PeriodLast30Days   PeriodToken = "last-30-days"
	PeriodLast3Months  PeriodToken = "last-3-months"
	PeriodLast365Days  PeriodToken = "last-365-days"
	PeriodAllTime      PeriodToken = "all-time"
	PeriodCustom       PeriodToken = "custom"
	DefaultPeriodToken             = PeriodLast365Days
)

// Bucket is the grouping granularity a period resolves to.
type Bucket string

const (
	BucketHour   Bucket = "hour"
	BucketDay    Bucket = "day"
	BucketWeek   Bucket = "week"
	BucketMonth  Bucket = "month"
	BucketYear   Bucket = "year"
	BucketCustom Bucket = "custom"
)

// PeriodSelection is what the dashboard user picked.
type PeriodSelection struct {
	Token       PeriodToken `json:"token"`
	CustomRange string      `json:"customRange,omitempty"`
}

// DateRange is inclusive on both ends. A zero Start means unbounded.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) Unbounded() bool { return r.Start.IsZero() }

func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	return !t.After(r.End)
}

// Days is the number of whole days the range spans.
func (r DateRange) Days() int {
	if r.Unbounded() {
		return -1
	}
	return int(r.End.Sub(r.Start) / (24 * time.Hour))
}

// ResolvedPeriod is a selection turned into concrete bounds and buckets.
type ResolvedPeriod struct {
	Token  PeriodToken `json:"token"`
	Range  DateRange   `json:"range"`
	Bucket Bucket      `json:"bucket"`
	// Buckets holds one sub-range per bucket crossed, clipped to Range.
	Buckets []DateRange `json:"buckets"`
}
