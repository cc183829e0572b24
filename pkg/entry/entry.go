// Package entry defines the cultural risk entry, its identity rules, and the in-memory
// collection the curation pipeline threads through every stage.
package entry

import (
	"strings"

	"github.com/google/uuid"
)

// Group is the taxonomy bucket an entry belongs to
type Group string

const (
	GroupLanguage Group = "language"
	GroupPerson   Group = "person"
	GroupGroup    Group = "group"
	GroupTrend    Group = "trend"
)

// Groups lists every valid group in taxonomy order
var Groups = []Group{GroupLanguage, GroupPerson, GroupGroup, GroupTrend}

// Valid reports whether g is part of the taxonomy
func (g Group) Valid() bool {
	switch g {
	case GroupLanguage, GroupPerson, GroupGroup, GroupTrend:
		return true
	default:
		return false
	}
}

// RiskLevel is the brand-safety severity of an entry
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Status is the lifecycle state of an entry
type Status string

const (
	StatusActive   Status = "Active"
	StatusArchived Status = "Archived"
)

// Verification records how strongly an entry's existence has been confirmed
type Verification string

const (
	// VerificationVerified means the reference lexicon returned a definition
	VerificationVerified Verification = "verified"

	// VerificationDegraded means the lexicon was unreachable and the source's own description was kept
	VerificationDegraded Verification = "degraded"

	// VerificationUnverified means verification was switched off for the run that added the entry
	VerificationUnverified Verification = "unverified"

	// VerificationUnconfirmed means a later re-verification found no definition
	VerificationUnconfirmed Verification = "unconfirmed"
)

// rank orders verification levels so merges only ever upgrade them
func (v Verification) rank() int {
	switch v {
	case VerificationVerified:
		return 3
	case VerificationDegraded:
		return 2
	case VerificationUnverified:
		return 1
	default:
		return 0
	}
}

// ContextEnglish is the locale key that must always carry an explanation
const ContextEnglish = "en"

// Entry is a single curated cultural risk record
type Entry struct {
	ID            string            `json:"id"`
	Term          string            `json:"term" validate:"required,notblank"`
	Group         Group             `json:"group" validate:"required,oneof=language person group trend"`
	Country       []string          `json:"country" validate:"required,min=1,dive,required,alpha,uppercase"`
	Category      string            `json:"category" validate:"required,notblank,max=80"`
	RiskLevel     RiskLevel         `json:"risk_level" validate:"required,oneof=Low Medium High"`
	TrendScore    int               `json:"trend_score" validate:"min=0,max=100"`
	Status        Status            `json:"status" validate:"required,oneof=Active Archived"`
	FirstDetected Date              `json:"first_detected"`
	LastUpdated   Date              `json:"last_updated"`
	Context       map[string]string `json:"context"`
	ImageURL      string            `json:"image_url"`
	Verification  Verification      `json:"verification,omitempty"`
	Source        string            `json:"source,omitempty"`
}

// Key returns the identity key of a term: lowercased and trimmed
func Key(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Key returns the identity key of the entry
func (e *Entry) Key() string {
	return Key(e.Term)
}

// idNamespace scopes the name-based ids of entries
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ethanbaker/riskwatch/entry"))

// IDFor derives the stable id of a term from its identity key
func IDFor(term string) string {
	return uuid.NewSHA1(idNamespace, []byte(Key(term))).String()
}

// Explanation returns the English context text, or an empty string
func (e *Entry) Explanation() string {
	if e.Context == nil {
		return ""
	}
	return e.Context[ContextEnglish]
}

// Clone returns a deep copy of the entry
func (e Entry) Clone() Entry {
	out := e
	if e.Country != nil {
		out.Country = append([]string(nil), e.Country...)
	}
	if e.Context != nil {
		out.Context = make(map[string]string, len(e.Context))
		for k, v := range e.Context {
			out.Context[k] = v
		}
	}
	return out
}
