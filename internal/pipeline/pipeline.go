// Package pipeline runs the curation stages over one explicitly threaded collection:
// load, sweep, re-verify, plan, mine, verify, merge, save
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethanbaker/riskwatch/internal/lifecycle"
	"github.com/ethanbaker/riskwatch/internal/metrics"
	"github.com/ethanbaker/riskwatch/internal/miner"
	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/ethanbaker/riskwatch/internal/verify"
	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoSources means a mining run was requested without a candidate source
var ErrNoSources = errors.New("no candidate source configured")

// knownTermsHint bounds how many stored terms are offered to sources as already known
const knownTermsHint = 20

// DefaultReverifyLimit bounds the degraded entries looked up again per run
const DefaultReverifyLimit = 20

// Store loads and replaces the whole entry collection
type Store interface {
	Load(ctx context.Context) ([]entry.Entry, error)
	Save(ctx context.Context, entries []entry.Entry) error
}

// Config holds the per-run settings
type Config struct {
	Plan          planner.PlanConfig
	Seed          uint64 // 0 derives a seed from the clock
	Checkpoint    bool   // save after every topic that changed the collection
	ReverifyLimit int
	TopicInterval time.Duration // minimum spacing between source requests
}

// Deps are the collaborators of a pipeline. Miner may be nil for sweep-only use
type Deps struct {
	Store     Store
	Miner     *miner.Miner
	Verifier  *verify.Verifier
	Lifecycle *lifecycle.Manager
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Pipeline runs curation passes. Runs must not overlap
type Pipeline struct {
	cfg       Config
	store     Store
	miner     *miner.Miner
	verifier  *verify.Verifier
	lifecycle *lifecycle.Manager
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu     sync.RWMutex
	latest *RunReport
}

// New creates a pipeline
func New(cfg Config, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Verifier == nil {
		deps.Verifier = verify.Disabled()
	}
	if deps.Lifecycle == nil {
		deps.Lifecycle = lifecycle.NewManager(lifecycle.DefaultWindowDays, deps.Logger)
	}
	if cfg.ReverifyLimit < 0 {
		cfg.ReverifyLimit = 0
	}

	return &Pipeline{
		cfg:       cfg,
		store:     deps.Store,
		miner:     deps.Miner,
		verifier:  deps.Verifier,
		lifecycle: deps.Lifecycle,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("pipeline"),
		tracer:    otel.Tracer("github.com/ethanbaker/riskwatch/internal/pipeline"),
		now:       time.Now,
	}
}

// Latest returns the report of the most recent finished run, or nil
func (p *Pipeline) Latest() *RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil
	}
	r := *p.latest
	return &r
}

// Run executes one full curation pass. The store is saved once at the end, and after every
// topic when checkpointing is on. A returned error means the final state was not saved
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	if p.miner == nil {
		return nil, ErrNoSources
	}

	report := newReport("run", p.now())
	report.Source = p.miner.SourceName()

	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run_id", report.RunID),
		attribute.String("source", report.Source),
	))
	defer span.End()

	err := p.run(ctx, report)
	return p.finish(span, report, err)
}

func (p *Pipeline) run(ctx context.Context, report *RunReport) error {
	c, today, err := p.load(ctx, report)
	if err != nil {
		return err
	}

	if err := p.reverify(ctx, c, report); err != nil {
		return err
	}

	report.Seed = p.cfg.Seed
	if report.Seed == 0 {
		report.Seed = uint64(p.now().UnixNano())
		p.logger.Info("derived plan seed from clock", zap.Uint64("seed", report.Seed))
	}

	topics, err := planner.Plan(p.cfg.Plan, report.Seed)
	if err != nil {
		return fmt.Errorf("failed to plan topics: %w", err)
	}
	report.TopicsPlanned = len(topics)

	var limiter *rate.Limiter
	if p.cfg.TopicInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(p.cfg.TopicInterval), 1)
	}

	for _, topic := range topics {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		changed, err := p.mineTopic(ctx, c, topic, today, report)
		if err != nil {
			return err
		}

		if p.cfg.Checkpoint && changed {
			if err := p.store.Save(ctx, c.Entries()); err != nil {
				p.logger.Warn("checkpoint save failed", zap.String("topic", topic.String()), zap.Error(err))
			} else {
				report.Checkpoints++
			}
		}
	}

	return p.save(ctx, c, report)
}

// mineTopic mines, verifies and merges one topic. Topic failures are absorbed; only context
// cancellation is returned
func (p *Pipeline) mineTopic(ctx context.Context, c *entry.Collection, topic planner.Topic, today entry.Date, report *RunReport) (bool, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.topic", trace.WithAttributes(
		attribute.String("topic", topic.String()),
	))
	defer span.End()

	report.TopicsAttempted++
	drafts, stats, err := p.miner.Mine(ctx, sources.Request{
		Topic:      topic,
		Count:      topic.Count,
		Today:      today,
		KnownTerms: recentTerms(c, knownTermsHint),
	})
	report.Mined += stats.Raw
	report.Invalid += stats.Invalid
	report.OffTaxonomy += stats.OffTaxonomy
	p.metrics.AddCandidates("mined", stats.Raw)
	p.metrics.AddCandidates("invalid", stats.Invalid)
	p.metrics.AddCandidates("off_taxonomy", stats.OffTaxonomy)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		report.TopicsFailed++
		p.metrics.IncTopic(false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "topic failed")
		p.logger.Warn("skipping topic", zap.String("topic", topic.String()), zap.Error(err))
		return false, nil
	}
	p.metrics.IncTopic(true)

	changed := false
	for _, draft := range drafts {
		existing, found := c.Get(draft.Term)

		if found && existing.Status == entry.StatusActive {
			// Already confirmed; this is a refresh and keeps the stored evidence level.
			// Lexicon evidence is only ever replaced by lexicon evidence, and source text
			// is held to the same sanitizing as any other stored description
			draft.Verification = ""
			description := verify.Sanitize(draft.Explanation())
			if existing.Verification == entry.VerificationVerified || description == "" {
				delete(draft.Context, entry.ContextEnglish)
			} else {
				draft.Context[entry.ContextEnglish] = description
			}
			report.Skipped++
		} else {
			decision, err := p.verifier.Apply(ctx, &draft)
			if err != nil {
				return changed, err
			}
			if !decision.Accepted {
				report.Rejected++
				p.metrics.AddCandidates("rejected", 1)
				p.logger.Debug("rejected draft", zap.String("term", draft.Term), zap.String("reason", decision.Reason))
				continue
			}
			switch draft.Verification {
			case entry.VerificationVerified:
				report.Verified++
			case entry.VerificationDegraded:
				report.Degraded++
			case entry.VerificationUnverified:
				report.Unverified++
			}
			p.metrics.AddCandidates(string(draft.Verification), 1)
		}

		outcome, err := c.Merge(draft, today)
		if err != nil {
			report.Invalid++
			p.logger.Debug("merge rejected draft", zap.String("term", draft.Term), zap.Error(err))
			continue
		}
		changed = true
		p.metrics.IncMerge(outcome.String())

		switch outcome {
		case entry.Inserted:
			report.Inserted++
		case entry.Refreshed:
			report.Refreshed++
		case entry.Revived:
			report.Revived++
		}
		p.logger.Debug("merged draft", zap.String("term", draft.Term), zap.Stringer("outcome", outcome))
	}

	span.SetAttributes(attribute.Int("drafts", len(drafts)))
	return changed, nil
}

// Sweep loads the store, archives stale entries and saves. No sources are needed
func (p *Pipeline) Sweep(ctx context.Context) (*RunReport, error) {
	report := newReport("sweep", p.now())

	ctx, span := p.tracer.Start(ctx, "pipeline.Sweep", trace.WithAttributes(
		attribute.String("run_id", report.RunID),
	))
	defer span.End()

	err := func() error {
		c, _, err := p.load(ctx, report)
		if err != nil {
			return err
		}
		return p.save(ctx, c, report)
	}()
	return p.finish(span, report, err)
}

// load reads the store and applies the lifecycle sweep
func (p *Pipeline) load(ctx context.Context, report *RunReport) (*entry.Collection, entry.Date, error) {
	entries, err := p.store.Load(ctx)
	if err != nil {
		return nil, entry.Date{}, fmt.Errorf("failed to load store: %w", err)
	}

	c, dropped := entry.NewCollection(entries)
	for _, term := range dropped {
		p.logger.Warn("dropped duplicate entry", zap.String("term", term))
	}

	today := entry.NewDate(p.now())
	report.Archived = p.lifecycle.Sweep(c, today)
	p.metrics.AddArchived(report.Archived)
	p.logger.Info("loaded store",
		zap.Int("entries", c.Len()),
		zap.Int("archived", report.Archived),
		zap.Int("window_days", p.lifecycle.Window()),
	)

	return c, today, nil
}

func (p *Pipeline) save(ctx context.Context, c *entry.Collection, report *RunReport) error {
	if err := p.store.Save(ctx, c.Entries()); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	report.TotalActive = c.Count(entry.StatusActive)
	report.TotalArchived = c.Count(entry.StatusArchived)
	p.metrics.SetEntries(report.TotalActive, report.TotalArchived)
	return nil
}

// finish stamps, records and logs a report
func (p *Pipeline) finish(span trace.Span, report *RunReport, err error) (*RunReport, error) {
	report.FinishedAt = p.now()
	p.metrics.ObserveRun(report.Duration())
	p.metrics.IncRun(err == nil)

	if err != nil {
		report.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		p.logger.Error("run failed", append(report.Fields(), zap.Error(err))...)
	} else {
		p.logger.Info("run finished", report.Fields()...)
	}

	p.mu.Lock()
	p.latest = report
	p.mu.Unlock()

	return report, err
}

// recentTerms returns up to n Active terms, most recently updated last
func recentTerms(c *entry.Collection, n int) []string {
	var active []entry.Entry
	c.Each(func(e *entry.Entry) {
		if e.Status == entry.StatusActive {
			active = append(active, *e)
		}
	})

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LastUpdated.Before(active[j].LastUpdated)
	})
	if len(active) > n {
		active = active[len(active)-n:]
	}

	terms := make([]string, len(active))
	for i, e := range active {
		terms[i] = e.Term
	}
	return terms
}
