package usage

import "time"

// PeriodKind identifies one of the quota windows the endpoint reports.
type PeriodKind string

const (
	PeriodSession    PeriodKind = "session"
	PeriodWeekly     PeriodKind = "weekly"
	PeriodWeeklyOpus PeriodKind = "weekly-opus"
)

// Snapshot is the normalized usage state for a single fetch. It is built
// fresh from each response and never outlives the process.
type Snapshot struct {
	Plan      string      `json:"plan"`
	Periods   []Period    `json:"periods"`
	Extra     *ExtraUsage `json:"extra_usage,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// Period is one quota window. Utilization is a fraction of the limit and may
// exceed 1.0 when the endpoint reports overage.
type Period struct {
	Kind        PeriodKind `json:"kind"`
	Label       string     `json:"label"`
	Utilization float64    `json:"utilization"`
	ResetsAt    *time.Time `json:"resets_at,omitempty"`
}

// ExtraUsage describes pay-as-you-go overflow credits, when enabled.
// Limit and used amounts are in cents.
type ExtraUsage struct {
	Enabled      bool    `json:"is_enabled"`
	MonthlyLimit float64 `json:"monthly_limit"`
	UsedCredits  float64 `json:"used_credits"`
	Utilization  float64 `json:"utilization"`
}

// MaxUtilization returns the highest utilization across all periods.
func (s *Snapshot) MaxUtilization() float64 {
	highest := 0.0
	for _, p := range s.Periods {
		if p.Utilization > highest {
			highest = p.Utilization
		}
	}
	return highest
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details"`
}
