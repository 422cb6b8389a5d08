package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// NotApplicable is rendered wherever a metric cannot be computed or compared.
const NotApplicable = "N/A"

// Metric is an integer score that may be NotApplicable.
type Metric struct {
	Value int
	Valid bool
}

func MetricOf(v int) Metric { return Metric{Value: v, Valid: true} }

func NotApplicableMetric() Metric { return Metric{} }

func (m Metric) String() string {
	if !m.Valid {
		return NotApplicable
	}
	return strconv.Itoa(m.Value)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return json.Marshal(NotApplicable)
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		*m = Metric{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MetricOf(v)
	return nil
}

// NpsCounts are latest-answer tallies per NPS category.
type NpsCounts struct {
	Promoters  int `json:"promoters"`
	Passives   int `json:"passives"`
	Detractors int `json:"detractors"`
}

func (c NpsCounts) Total() int { return c.Promoters + c.Passives + c.Detractors }

func (c NpsCounts) Add(o NpsCounts) NpsCounts {
	return NpsCounts{
		Promoters:  c.Promoters + o.Promoters,
		Passives:   c.Passives + o.Passives,
		Detractors: c.Detractors + o.Detractors,
	}
}

func (c NpsCounts) share(n int) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Score is round(%promoters - %detractors).
func (c NpsCounts) Score() int {
	return int(math.Round(c.share(c.Promoters) - c.share(c.Detractors)))
}

// NpsResult is the output of the current and previous period reports.
type NpsResult struct {
	Score                int       `json:"score"`
	PromotersPercentage  float64   `json:"promoters_percentage"`
	PassivesPercentage   float64   `json:"passives_percentage"`
	DetractorsPercentage float64   `json:"detractors_percentage"`
	Total                int       `json:"total"`
	Range                DateRange `json:"range"`
}

func NewNpsResult(c NpsCounts, r DateRange) NpsResult {
	return NpsResult{
		Score:                c.Score(),
		PromotersPercentage:  round2(c.share(c.Promoters)),
		PassivesPercentage:   round2(c.share(c.Passives)),
		DetractorsPercentage: round2(c.share(c.Detractors)),
		Total:                c.Total(),
		Range:                r,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// TenantNpsCounts is one tenant's tallies in a fleet-wide query.
type TenantNpsCounts struct {
	TenantID int64     `json:"tenantId"`
	Counts   NpsCounts `json:"counts"`
}

// BenchmarkRow is one tenant's NPS in the comparison fleet.
type BenchmarkRow struct {
	TenantID int64 `json:"tenantId"`
	Score    int   `json:"score"`
}

// BenchmarkResult holds the fleet average and the tenant's percentile within it.
type BenchmarkResult struct {
	Benchmark  Metric `json:"benchmark"`
	Percentile Metric `json:"percentile"`
	Current    int    `json:"current"`
	Tenants    int    `json:"tenants"`
}

func NotComparableBenchmark() BenchmarkResult {
	return BenchmarkResult{Benchmark: NotApplicableMetric(), Percentile: NotApplicableMetric()}
}

// MonthlyPoint is one month of a grouped time series.
type MonthlyPoint struct {
	Y             float64 `json:"y"`
	TotalQuantity int     `json:"totalQuantity"`
}

// MonthlySeries always has one slot per calendar month, January first.
type MonthlySeries [12]MonthlyPoint

// MonthlyAggregate is a store-side average for one month (1-12).
type MonthlyAggregate struct {
	Month   int     `json:"month"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// MonthlyNpsCounts is a store-side NPS tally for one month (1-12).
type MonthlyNpsCounts struct {
	Month  int       `json:"month"`
	Counts NpsCounts `json:"counts"`
}

// CategoryCount is a store-side tally of one answer category.
type CategoryCount struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

// CategoryShare is one row of an answer distribution.
type CategoryShare struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// LikertResult is the distribution and mean of a Likert question.
type LikertResult struct {
	Question QuestionRef     `json:"question"`
	Title    string          `json:"title"`
	Options  []CategoryShare `json:"options"`
	Average  float64         `json:"average"`
	Total    int             `json:"total"`
}

// MultipleChoiceResult is the distribution of a multiple-choice question.
type MultipleChoiceResult struct {
	Question QuestionRef     `json:"question"`
	Title    string          `json:"title"`
	Options  []CategoryShare `json:"options"`
	Total    int             `json:"total"`
}

// SeriesPoint is the NPS of one bucket of the selected period.
type SeriesPoint struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score int       `json:"score"`
	Total int       `json:"total"`
}

// DashboardSnapshot bundles what the NPS widgets render.
type DashboardSnapshot struct {
	Period    ResolvedPeriod  `json:"period"`
	Current   NpsResult       `json:"current"`
	Previous  NpsResult       `json:"previous"`
	Benchmark BenchmarkResult `json:"benchmark"`
	Series    []SeriesPoint   `json:"series"`
}
