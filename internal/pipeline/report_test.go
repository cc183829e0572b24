package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestRunReportFields(t *testing.T) {
	started := time.Date(2026, 1, 13, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		report RunReport
		want   map[string]interface{}
	}{
		{
			name: "counts",
			report: RunReport{
				RunID: "r1", Kind: "run", StartedAt: started, FinishedAt: started.Add(time.Minute),
				TopicsPlanned: 4, TopicsAttempted: 3, Skipped: 2,
				Inserted: 2, Refreshed: 1, Revived: 1, Checkpoints: 3,
			},
			want: map[string]interface{}{
				"topics_planned":       int64(4),
				"topics_attempted":     int64(3),
				"merged":               int64(4),
				"skipped_verification": int64(2),
				"checkpoints":          int64(3),
				"duration":             time.Minute,
			},
		},
		{
			name:   "unfinished",
			report: RunReport{RunID: "r2", Kind: "sweep", StartedAt: started, Error: "store unavailable"},
			want: map[string]interface{}{
				"merged":   int64(0),
				"duration": time.Duration(0),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := zapcore.NewMapObjectEncoder()
			for _, f := range tt.report.Fields() {
				f.AddTo(enc)
			}
			for key, value := range tt.want {
				assert.Equal(t, value, enc.Fields[key], key)
			}
		})
	}

	// finish adds the error itself
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range (&RunReport{Error: "boom"}).Fields() {
		f.AddTo(enc)
	}
	assert.NotContains(t, enc.Fields, "error")
}
