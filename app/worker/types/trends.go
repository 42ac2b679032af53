package types

import "time"

// WorkflowTrendDateInput names the day a trend run covers. Dates are UTC
// midnights.
type WorkflowTrendDateInput struct {
	Date time.Time `json:"date"`
	// ChainUntil bounds completion-triggered chaining. The workflow for date D
	// starts the workflow for D+1 only while D+1 <= ChainUntil.
	ChainUntil time.Time `json:"chainUntil"`
}

// WorkflowTrendCatchupInput bounds the catch-up scan. A zero Since makes the
// workflow derive it from HorizonDays at run time, so a recurring schedule can
// carry a fixed payload while each run scans a moving window.
type WorkflowTrendCatchupInput struct {
	Since       time.Time `json:"since"`
	HorizonDays int       `json:"horizonDays"`
}

// ActivityComputeTrendBoundsInput names the day to aggregate.
type ActivityComputeTrendBoundsInput struct {
	Date time.Time `json:"date"`
}

// ActivityComputeTrendBoundsOutput reports how many metric rows were written.
type ActivityComputeTrendBoundsOutput struct {
	Metrics    int     `json:"metrics"`
	DurationMs float64 `json:"durationMs"` // Execution time in milliseconds
}

// ActivityComputeTrendSumInput names the day whose sums should be filled in.
type ActivityComputeTrendSumInput struct {
	Date time.Time `json:"date"`
}

// ActivityComputeTrendSumOutput reports how many sums were written.
type ActivityComputeTrendSumOutput struct {
	Metrics    int     `json:"metrics"`
	DurationMs float64 `json:"durationMs"` // Execution time in milliseconds
}

// ActivityFindMissingTrendDatesInput bounds the completeness scan.
type ActivityFindMissingTrendDatesInput struct {
	Since time.Time `json:"since"`
}

// ActivityFindMissingTrendDatesOutput lists absent dates in ascending order.
type ActivityFindMissingTrendDatesOutput struct {
	Missing    []time.Time `json:"missing"`
	DurationMs float64     `json:"durationMs"` // Execution time in milliseconds
}

// ActivityStartTrendDateInput asks the worker to start (or no-op on an
// already running) trend workflow for the given date.
type ActivityStartTrendDateInput struct {
	Date       time.Time `json:"date"`
	ChainUntil time.Time `json:"chainUntil"`
}

// ActivityStartTrendDateOutput reports whether a new workflow run was started.
type ActivityStartTrendDateOutput struct {
	Started    bool    `json:"started"`
	DurationMs float64 `json:"durationMs"` // Execution time in milliseconds
}
