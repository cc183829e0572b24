package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethanbaker/riskwatch/pkg/entry"
)

// Record is the row shape of an entry
type Record struct {
	Position  int       `gorm:"column:position;primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"column:created_at"`

	EntryID       string `gorm:"column:entry_id;size:36"`
	Term          string `gorm:"column:term;not null;size:255"`
	TermKey       string `gorm:"column:term_key;uniqueIndex;not null;size:255"`
	Group         string `gorm:"column:entry_group;size:16"`
	Country       string `gorm:"column:country;size:255"` // comma separated market codes
	Category      string `gorm:"column:category;size:80"`
	RiskLevel     string `gorm:"column:risk_level;size:8"`
	TrendScore    int    `gorm:"column:trend_score"`
	Status        string `gorm:"column:status;size:16;index"`
	FirstDetected string `gorm:"column:first_detected;size:10"`
	LastUpdated   string `gorm:"column:last_updated;size:10"`
	Context       string `gorm:"column:context;type:text"` // JSON object of locale -> text
	ImageURL      string `gorm:"column:image_url;size:1024"`
	Verification  string `gorm:"column:verification;size:16"`
	Source        string `gorm:"column:source;size:64"`
}

// TableName sets the table name for GORM
func (Record) TableName() string {
	return "risk_entries"
}

// toRecord converts an entry to its row at position
func toRecord(e entry.Entry, position int) (Record, error) {
	context := "{}"
	if len(e.Context) > 0 {
		raw, err := json.Marshal(e.Context)
		if err != nil {
			return Record{}, fmt.Errorf("encode context of %q: %w", e.Term, err)
		}
		context = string(raw)
	}

	return Record{
		Position:      position,
		EntryID:       e.ID,
		Term:          e.Term,
		TermKey:       e.Key(),
		Group:         string(e.Group),
		Country:       strings.Join(e.Country, ","),
		Category:      e.Category,
		RiskLevel:     string(e.RiskLevel),
		TrendScore:    e.TrendScore,
		Status:        string(e.Status),
		FirstDetected: e.FirstDetected.String(),
		LastUpdated:   e.LastUpdated.String(),
		Context:       context,
		ImageURL:      e.ImageURL,
		Verification:  string(e.Verification),
		Source:        e.Source,
	}, nil
}

// toEntry converts a row back to an entry
func (r Record) toEntry() (entry.Entry, error) {
	first, err := entry.ParseDate(r.FirstDetected)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("first_detected of %q: %w", r.Term, err)
	}
	last, err := entry.ParseDate(r.LastUpdated)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("last_updated of %q: %w", r.Term, err)
	}

	var context map[string]string
	if r.Context != "" && r.Context != "{}" {
		if err := json.Unmarshal([]byte(r.Context), &context); err != nil {
			return entry.Entry{}, fmt.Errorf("context of %q: %w", r.Term, err)
		}
	}

	var country []string
	if r.Country != "" {
		country = strings.Split(r.Country, ",")
	}

	return entry.Entry{
		ID:            r.EntryID,
		Term:          r.Term,
		Group:         entry.Group(r.Group),
		Country:       country,
		Category:      r.Category,
		RiskLevel:     entry.RiskLevel(r.RiskLevel),
		TrendScore:    r.TrendScore,
		Status:        entry.Status(r.Status),
		FirstDetected: first,
		LastUpdated:   last,
		Context:       context,
		ImageURL:      r.ImageURL,
		Verification:  entry.Verification(r.Verification),
		Source:        r.Source,
	}, nil
}
