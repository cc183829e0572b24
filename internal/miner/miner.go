// Package miner asks a Candidate Source for raw candidates per topic and turns them into
// validated draft entries
package miner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.uber.org/zap"
)

// ErrTopicFailed wraps every failure that costs a whole topic. It is recoverable: the
// pipeline logs it and moves to the next topic
var ErrTopicFailed = errors.New("topic failed")

// Source is any provider that returns raw candidate records for a topic
type Source interface {
	Name() string
	Mine(ctx context.Context, req sources.Request) ([]sources.Record, error)
}

// MineStats counts what happened to the records of one topic
type MineStats struct {
	Raw         int
	Accepted    int
	OffTaxonomy int
	Invalid     int
	Retried     bool
}

// Add accumulates stats across topics
func (s *MineStats) Add(other MineStats) {
	s.Raw += other.Raw
	s.Accepted += other.Accepted
	s.OffTaxonomy += other.OffTaxonomy
	s.Invalid += other.Invalid
}

// Config controls the rate-limit backoff
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

const (
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Miner issues one source request per topic, retrying once on rate limiting
type Miner struct {
	source Source
	cfg    Config
	logger *zap.Logger
}

// New creates a miner for a source
func New(source Source, cfg Config, logger *zap.Logger) *Miner {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.InitialBackoff)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Miner{
		source: source,
		cfg:    cfg,
		logger: logger.Named("miner"),
	}
}

// SourceName returns the name of the wrapped source
func (m *Miner) SourceName() string {
	return m.source.Name()
}

// Mine fetches candidates for one topic and returns the drafts that passed normalization,
// the taxonomy check and strict validation
func (m *Miner) Mine(ctx context.Context, req sources.Request) ([]entry.Entry, MineStats, error) {
	var stats MineStats

	records, err := m.fetch(ctx, req, &stats)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %s: %w", ErrTopicFailed, req.Topic, err)
	}
	stats.Raw = len(records)

	drafts := make([]entry.Entry, 0, len(records))
	for _, rec := range records {
		draft, err := normalize(rec, req.Topic, req.Today, m.source.Name())
		if err != nil {
			stats.Invalid++
			m.logger.Debug("rejected candidate", zap.String("term", draft.Term), zap.Error(err))
			continue
		}

		if draft.Group != req.Topic.Group {
			stats.OffTaxonomy++
			m.logger.Debug("discarded off-taxonomy candidate",
				zap.String("term", draft.Term),
				zap.String("group", string(draft.Group)),
				zap.String("topic_group", string(req.Topic.Group)),
			)
			continue
		}

		if err := entry.Validate(&draft); err != nil {
			stats.Invalid++
			m.logger.Debug("rejected candidate", zap.String("term", draft.Term), zap.Error(err))
			continue
		}

		drafts = append(drafts, draft)
	}
	stats.Accepted = len(drafts)

	return drafts, stats, nil
}

// fetch performs the source request, sleeping an exponential backoff and retrying once
// when the provider reports rate limiting. Other failures are not retried
func (m *Miner) fetch(ctx context.Context, req sources.Request, stats *MineStats) ([]sources.Record, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.cfg.InitialBackoff
	exp.MaxInterval = m.cfg.MaxBackoff
	exp.MaxElapsedTime = 0

	hinted := &retryAfterBackOff{BackOff: exp, limit: m.cfg.MaxBackoff}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, 1), ctx)

	op := func() ([]sources.Record, error) {
		records, err := m.source.Mine(ctx, req)
		if err == nil {
			return records, nil
		}

		var rl *sources.RateLimitError
		if errors.As(err, &rl) {
			hinted.hint = rl.RetryAfter
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		stats.Retried = true
		m.logger.Info("rate limited, backing off",
			zap.String("topic", req.Topic.String()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotifyWithData(op, policy, notify)
}

// retryAfterBackOff waits at least as long as the provider asked for, up to limit
type retryAfterBackOff struct {
	backoff.BackOff
	hint  time.Duration
	limit time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = min(b.hint, b.limit)
	}
	return next
}
