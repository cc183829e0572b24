// Package lifecycle applies the rolling-window archival rule to a collection
package lifecycle

import (
	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.uber.org/zap"
)

// DefaultWindowDays is the freshness horizon after which an Active entry is archived
const DefaultWindowDays = 90

// Manager archives entries that aged out of the rolling window
type Manager struct {
	window int
	logger *zap.Logger
}

// NewManager creates a lifecycle manager. A non-positive window falls back to the default
func NewManager(windowDays int, logger *zap.Logger) *Manager {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{window: windowDays, logger: logger.Named("lifecycle")}
}

// Window returns the rolling window length in days
func (m *Manager) Window() int {
	return m.window
}

// Sweep archives every Active entry whose age exceeds the window and returns how many were
// archived. Only status changes. Entries without first_detected count as age zero
func (m *Manager) Sweep(c *entry.Collection, today entry.Date) int {
	archived := 0

	c.Each(func(e *entry.Entry) {
		if e.Status != entry.StatusActive {
			return
		}
		if e.FirstDetected.IsZero() {
			m.logger.Debug("entry has no first_detected, treating as age zero", zap.String("term", e.Term))
			return
		}

		age := today.DaysSince(e.FirstDetected)
		if age <= m.window {
			return
		}

		e.Status = entry.StatusArchived
		archived++
		m.logger.Debug("archived entry",
			zap.String("term", e.Term),
			zap.Int("age_days", age),
			zap.String("first_detected", e.FirstDetected.String()))
	})

	return archived
}
