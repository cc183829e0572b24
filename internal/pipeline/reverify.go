package pipeline

import (
	"context"

	"github.com/ethanbaker/riskwatch/internal/verify"
	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.uber.org/zap"
)

// reverify looks degraded entries up again in store order, up to the configured limit.
// Confirmed entries take the lexicon evidence; entries the lexicon does not know are marked
// unconfirmed and kept for review. The pass stops at the first unavailable lookup
func (p *Pipeline) reverify(ctx context.Context, c *entry.Collection, report *RunReport) error {
	if !p.verifier.Enabled() || p.cfg.ReverifyLimit == 0 {
		return nil
	}

	var terms []string
	c.Each(func(e *entry.Entry) {
		if e.Verification == entry.VerificationDegraded && len(terms) < p.cfg.ReverifyLimit {
			terms = append(terms, e.Term)
		}
	})
	if len(terms) == 0 {
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.reverify")
	defer span.End()

	for _, term := range terms {
		res, err := p.verifier.Verify(ctx, term)
		if err != nil {
			return err
		}

		switch res.Outcome {
		case verify.Verified:
			c.Update(term, func(e *entry.Entry) {
				if e.Context == nil {
					e.Context = make(map[string]string, 1)
				}
				e.Context[entry.ContextEnglish] = res.Evidence
				e.Verification = entry.VerificationVerified
			})
			report.Reverified++
			p.metrics.IncReverified(res.Outcome.String())

		case verify.NotFound:
			c.Update(term, func(e *entry.Entry) {
				e.Verification = entry.VerificationUnconfirmed
			})
			report.Unconfirmed++
			p.metrics.IncReverified(res.Outcome.String())
			p.logger.Info("degraded entry not found in lexicon, marked unconfirmed", zap.String("term", term))

		default:
			p.logger.Info("lexicon unavailable, postponing re-verification",
				zap.Int("remaining", len(terms)-report.Reverified-report.Unconfirmed),
				zap.Error(res.Err),
			)
			return nil
		}
	}

	return nil
}
