// Package verify confirms candidate terms against a reference lexicon and decides what
// happens to drafts when the lexicon cannot be reached
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.uber.org/zap"
)

// Outcome is the result class of a verification
type Outcome int

const (
	// Verified means the lexicon returned at least one definition
	Verified Outcome = iota + 1

	// NotFound means the lexicon has no definition for the term
	NotFound

	// Unavailable means the lexicon could not be queried
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Policy decides what happens to a draft when the lexicon is unavailable
type Policy string

const (
	// PolicyAccept keeps the draft with its own description as degraded evidence
	PolicyAccept Policy = "accept"

	// PolicyReject discards the draft
	PolicyReject Policy = "reject"
)

// ParsePolicy reads a policy name. Empty means PolicyAccept
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAccept:
		return PolicyAccept, nil
	case PolicyReject:
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown verifier policy %q (want accept or reject)", s)
	}
}

// MaxEvidenceRunes caps evidence stored in context.en
const MaxEvidenceRunes = 300

// Result is the outcome of looking up one term
type Result struct {
	Outcome  Outcome
	Evidence string // sanitized best definition, set when Verified
	Err      error  // cause, set when Unavailable
}

// Decision is what the verifier did with a draft
type Decision struct {
	Accepted bool
	Outcome  Outcome
	Reason   string
}

// Verifier checks drafts against a Lookuper
type Verifier struct {
	lookup  Lookuper
	policy  Policy
	enabled bool
	logger  *zap.Logger
}

// New creates an enabled verifier
func New(lookup Lookuper, policy Policy, logger *zap.Logger) *Verifier {
	if policy == "" {
		policy = PolicyAccept
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Verifier{
		lookup:  lookup,
		policy:  policy,
		enabled: lookup != nil,
		logger:  logger.Named("verify"),
	}
}

// Disabled returns a verifier that accepts every draft as unverified
func Disabled() *Verifier {
	return &Verifier{policy: PolicyAccept, logger: zap.NewNop()}
}

// Enabled reports whether lookups are performed
func (v *Verifier) Enabled() bool {
	return v.enabled
}

// Policy returns the unavailable policy in effect
func (v *Verifier) Policy() Policy {
	return v.policy
}

// Verify looks a term up. The returned error is non-nil only when ctx is done; lookup
// failures are reported as Unavailable
func (v *Verifier) Verify(ctx context.Context, term string) (Result, error) {
	if !v.enabled {
		return Result{Outcome: Unavailable, Err: errors.New("verification disabled")}, nil
	}

	defs, err := v.lookup.Lookup(ctx, term)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{Outcome: Unavailable, Err: err}, nil
	}

	// Definitions that are nothing but markup do not count
	usable := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if text := Sanitize(def.Text); text != "" {
			usable = append(usable, Definition{Text: text, Endorsement: def.Endorsement})
		}
	}

	best, ok := Best(usable)
	if !ok {
		return Result{Outcome: NotFound}, nil
	}
	return Result{Outcome: Verified, Evidence: best.Text}, nil
}

// Apply verifies a draft and updates its evidence and verification level in place.
//
// Behavior:
//   - Disabled: accepted as unverified with its own sanitized description, or rejected if
//     it has none
//   - Verified: evidence replaces context.en
//   - NotFound: rejected
//   - Unavailable: rejected under PolicyReject; otherwise kept as degraded with its own
//     sanitized description, or rejected if it has none
func (v *Verifier) Apply(ctx context.Context, draft *entry.Entry) (Decision, error) {
	if !v.enabled {
		description := Sanitize(draft.Explanation())
		if description == "" {
			return Decision{Reason: "no description"}, nil
		}
		setEvidence(draft, description)
		draft.Verification = entry.VerificationUnverified
		return Decision{Accepted: true, Reason: "disabled"}, nil
	}

	res, err := v.Verify(ctx, draft.Term)
	if err != nil {
		return Decision{}, err
	}

	switch res.Outcome {
	case Verified:
		setEvidence(draft, res.Evidence)
		draft.Verification = entry.VerificationVerified
		return Decision{Accepted: true, Outcome: Verified}, nil

	case NotFound:
		v.logger.Debug("term not found in reference lexicon", zap.String("term", draft.Term))
		return Decision{Outcome: NotFound, Reason: "not found"}, nil

	default:
		if v.policy == PolicyReject {
			v.logger.Debug("lexicon unavailable, rejecting", zap.String("term", draft.Term), zap.Error(res.Err))
			return Decision{Outcome: Unavailable, Reason: "lexicon unavailable"}, nil
		}

		fallback := Sanitize(draft.Explanation())
		if fallback == "" {
			v.logger.Debug("lexicon unavailable and no description to fall back on", zap.String("term", draft.Term))
			return Decision{Outcome: Unavailable, Reason: "no description"}, nil
		}

		setEvidence(draft, fallback)
		draft.Verification = entry.VerificationDegraded
		v.logger.Debug("lexicon unavailable, keeping degraded draft", zap.String("term", draft.Term), zap.Error(res.Err))
		return Decision{Accepted: true, Outcome: Unavailable, Reason: "degraded"}, nil
	}
}

func setEvidence(e *entry.Entry, text string) {
	if e.Context == nil {
		e.Context = make(map[string]string, 1)
	}
	e.Context[entry.ContextEnglish] = text
}

// Sanitize strips bracket markup, collapses whitespace and caps the text at MaxEvidenceRunes,
// ending cut text with an ellipsis
func Sanitize(text string) string {
	text = strings.NewReplacer("[", "", "]", "", "*", "", "`", "").Replace(text)
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= MaxEvidenceRunes {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:MaxEvidenceRunes-1])) + "…"
}
