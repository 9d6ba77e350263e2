package assistant

import (
	"strings"

	"github.com/teemow/inboxreply/internal/instrumentation"
)

// Default marker lists.
var (
	DefaultBulkMarkers   = []string{"newsletter", "promo"}
	DefaultActionMarkers = []string{"linkedin", "kaggle", "course", "new openings"}
)

// Rules holds the case-folded markers of the two filters.
type Rules struct {
	bulk   []string
	action []string
}

// NewRules normalizes the marker lists. Blank markers are dropped so an
// empty entry can never match everything.
func NewRules(bulk, action []string) Rules {
	return Rules{bulk: normalize(bulk), action: normalize(action)}
}

// DefaultRules returns Rules with the default markers.
func DefaultRules() Rules {
	return NewRules(DefaultBulkMarkers, DefaultActionMarkers)
}

// BulkMarkers returns the relevance filter's markers.
func (r Rules) BulkMarkers() []string { return append([]string(nil), r.bulk...) }

// ActionMarkers returns the action filter's markers.
func (r Rules) ActionMarkers() []string { return append([]string(nil), r.action...) }

// Relevant reports whether the sender carries no bulk-mail marker.
func (r Rules) Relevant(e EmailRecord) bool {
	return !containsAny(strings.ToLower(e.Sender), r.bulk)
}

// ActionRequired reports whether the sender or the snippet carries an
// action marker.
func (r Rules) ActionRequired(e EmailRecord) bool {
	return containsAny(strings.ToLower(e.Sender), r.action) ||
		containsAny(strings.ToLower(e.Snippet), r.action)
}

// Classify returns the classification label of one email.
func (r Rules) Classify(e EmailRecord) string {
	switch {
	case !r.Relevant(e):
		return instrumentation.ClassBulk
	case r.ActionRequired(e):
		return instrumentation.ClassAction
	default:
		return instrumentation.ClassIgnore
	}
}

// FilterRelevant keeps the relevant emails, preserving order.
func (r Rules) FilterRelevant(emails []EmailRecord) []EmailRecord {
	return filter(emails, r.Relevant)
}

// FilterActionRequired keeps the action-required emails, preserving order.
func (r Rules) FilterActionRequired(emails []EmailRecord) []EmailRecord {
	return filter(emails, r.ActionRequired)
}

// Pipeline runs the relevance filter, then the action filter.
func (r Rules) Pipeline(emails []EmailRecord) []EmailRecord {
	return r.FilterActionRequired(r.FilterRelevant(emails))
}

func filter(emails []EmailRecord, keep func(EmailRecord) bool) []EmailRecord {
	var out []EmailRecord
	for _, e := range emails {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func normalize(markers []string) []string {
	out := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
