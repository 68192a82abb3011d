package contracts

import "time"

// RunSummary is the audit row for one evaluation run
// ⭐ SSOT: 실행 감사 기록
type RunSummary struct {
	RunID         string         `json:"run_id"`
	AsOfDate      time.Time      `json:"as_of_date"`
	PeriodType    PeriodType     `json:"period_type"`
	ConfigHash    string         `json:"config_hash"`
	UniverseSize  int            `json:"universe_size"`
	Written       int            `json:"written"`
	NullComposite int            `json:"null_composite"`
	Rejected      int            `json:"rejected"`
	WriteFailed   int            `json:"write_failed"`
	Skipped       int            `json:"skipped"` // not scheduled after cancellation
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	IssueCounts   map[string]int `json:"issue_counts"`
}

// Duration returns the wall-clock run time
func (r *RunSummary) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Processed returns entities that reached the writer or validator
func (r *RunSummary) Processed() int {
	return r.Written + r.Rejected + r.WriteFailed
}
