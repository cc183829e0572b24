package pipeline

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunReport summarizes one curation run
type RunReport struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"` // "run" or "sweep"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Seed       uint64    `json:"seed,omitempty"`
	Source     string    `json:"source,omitempty"`

	TopicsPlanned   int `json:"topics_planned"`
	TopicsAttempted int `json:"topics_attempted"`
	TopicsFailed    int `json:"topics_failed"`

	Mined       int `json:"mined"`
	Invalid     int `json:"invalid"`
	OffTaxonomy int `json:"off_taxonomy"`
	Skipped     int `json:"skipped_verification"` // drafts already Active in the store
	Verified    int `json:"verified"`
	Degraded    int `json:"degraded"`
	Unverified  int `json:"unverified"`
	Rejected    int `json:"rejected"`

	Inserted  int `json:"inserted"`
	Refreshed int `json:"refreshed"`
	Revived   int `json:"revived"`
	Archived  int `json:"archived"`

	Reverified  int `json:"reverified"`
	Unconfirmed int `json:"unconfirmed"`

	Checkpoints   int `json:"checkpoints"`
	TotalActive   int `json:"total_active"`
	TotalArchived int `json:"total_archived"`

	Error string `json:"error,omitempty"`
}

func newReport(kind string, started time.Time) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: started,
	}
}

// Merged returns the number of drafts merged into the store
func (r *RunReport) Merged() int {
	return r.Inserted + r.Refreshed + r.Revived
}

// Duration returns how long the run took
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Fields renders the report as log fields
func (r *RunReport) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", r.RunID),
		zap.String("kind", r.Kind),
		zap.Duration("duration", r.Duration()),
		zap.Uint64("seed", r.Seed),
		zap.String("source", r.Source),
		zap.Int("topics_planned", r.TopicsPlanned),
		zap.Int("topics_attempted", r.TopicsAttempted),
		zap.Int("topics_failed", r.TopicsFailed),
		zap.Int("mined", r.Mined),
		zap.Int("invalid", r.Invalid),
		zap.Int("off_taxonomy", r.OffTaxonomy),
		zap.Int("verified", r.Verified),
		zap.Int("degraded", r.Degraded),
		zap.Int("unverified", r.Unverified),
		zap.Int("rejected", r.Rejected),
		zap.Int("skipped_verification", r.Skipped),
		zap.Int("inserted", r.Inserted),
		zap.Int("refreshed", r.Refreshed),
		zap.Int("revived", r.Revived),
		zap.Int("merged", r.Merged()),
		zap.Int("archived", r.Archived),
		zap.Int("reverified", r.Reverified),
		zap.Int("unconfirmed", r.Unconfirmed),
		zap.Int("checkpoints", r.Checkpoints),
		zap.Int("total_active", r.TotalActive),
		zap.Int("total_archived", r.TotalArchived),
	}
}
