package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teemow/inboxreply/internal/instrumentation"
)

func TestRules_FilterCorrectness(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		name     string
		email    EmailRecord
		relevant bool
		action   bool
		class    string
	}{
		{
			name:     "newsletter sender is bulk",
			email:    EmailRecord{ID: "1", Sender: "weekly@newsletter.com", Snippet: "This week"},
			relevant: false,
			class:    instrumentation.ClassBulk,
		},
		{
			name:     "linkedin sender needs action",
			email:    EmailRecord{ID: "2", Sender: "jobs@linkedin.com", Snippet: "Hello"},
			relevant: true,
			action:   true,
			class:    instrumentation.ClassAction,
		},
		{
			name:     "friend asking for lunch is ignored",
			email:    EmailRecord{ID: "3", Sender: "friend@example.com", Snippet: "lunch?"},
			relevant: true,
			action:   false,
			class:    instrumentation.ClassIgnore,
		},
		{
			name:     "action marker in snippet",
			email:    EmailRecord{ID: "4", Sender: "hr@company.com", Snippet: "We have New Openings for you"},
			relevant: true,
			action:   true,
			class:    instrumentation.ClassAction,
		},
		{
			name:     "markers are case-insensitive",
			email:    EmailRecord{ID: "5", Sender: "PROMO@Shop.com", Snippet: "Kaggle course"},
			relevant: false,
			action:   true,
			class:    instrumentation.ClassBulk,
		},
		{
			name:     "bulk marker in snippet only is still relevant",
			email:    EmailRecord{ID: "6", Sender: "team@kaggle.com", Snippet: "our newsletter"},
			relevant: true,
			action:   true,
			class:    instrumentation.ClassAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.relevant, r.Relevant(tt.email))
			if tt.relevant {
				assert.Equal(t, tt.action, r.ActionRequired(tt.email))
			}
			assert.Equal(t, tt.class, r.Classify(tt.email))
		})
	}
}

func TestRules_PipelinePreservesOrder(t *testing.T) {
	emails := []EmailRecord{
		{ID: "a", Sender: "x@kaggle.com"},
		{ID: "b", Sender: "promo@linkedin.com"},
		{ID: "c", Sender: "friend@example.com", Snippet: "lunch?"},
		{ID: "d", Sender: "school@uni.edu", Snippet: "course update"},
		{ID: "e", Sender: "jobs@linkedin.com"},
	}

	got := DefaultRules().Pipeline(emails)
	assert.Equal(t, []string{"a", "d", "e"}, ids(got))

	relevant := DefaultRules().FilterRelevant(emails)
	assert.Equal(t, []string{"a", "c", "d", "e"}, ids(relevant))
}

func TestNewRules_NormalizesMarkers(t *testing.T) {
	r := NewRules([]string{" NewsLetter ", "", "  "}, []string{"Urgent", ""})

	assert.Equal(t, []string{"newsletter"}, r.BulkMarkers())
	assert.Equal(t, []string{"urgent"}, r.ActionMarkers())

	assert.False(t, r.Relevant(EmailRecord{Sender: "the-newsletter@x.com"}))
	assert.True(t, r.ActionRequired(EmailRecord{Sender: "boss@x.com", Snippet: "URGENT: call me"}))
	assert.False(t, r.ActionRequired(EmailRecord{Sender: "boss@x.com", Snippet: "fyi"}), "blank markers must not match everything")
}

func TestRules_EmptyInput(t *testing.T) {
	assert.Empty(t, DefaultRules().Pipeline(nil))
}
