package classifier

import (
	"context"
	"testing"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineClassify(t *testing.T) {
	b := NewBaseline()

	tests := []struct {
		text     string
		category types.Category
		urgency  float64
	}{
		{"My credit card was charged twice", types.CategoryBilling, 0.3},
		{"Server is DOWN, every request returns a 500 error", types.CategoryTechnical, 0.9},
		{"Please have legal review the contract before renewal", types.CategoryLegal, 0.3},
		{"URGENT: refund the duplicate invoice asap", types.CategoryBilling, 0.9},
		{"hello there", types.CategoryBilling, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := b.Classify(context.Background(), tt.text)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.urgency, got.UrgencyScore)
		})
	}
}

func TestBaselinePrimaryNeverFails(t *testing.T) {
	got, err := NewBaseline().Primary(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, got.Category.Valid())
}

func TestUrgencyScoreWordBoundaries(t *testing.T) {
	assert.Equal(t, 0.9, UrgencyScore("Emergency! checkout broken"))
	assert.Equal(t, 0.3, UrgencyScore("downloads are slow"), "substring must not match")
	assert.Equal(t, 0.9, UrgencyScore("site down"))
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		reply   string
		want    types.Classification
		wantErr bool
	}{
		{
			name:  "plain json",
			text:  "invoice question",
			reply: `{"category": "Billing", "urgency_score": 0.2}`,
			want:  types.Classification{Category: types.CategoryBilling, UrgencyScore: 0.2},
		},
		{
			name:  "fenced and lowercase",
			text:  "contract review",
			reply: "```json\n{\"category\": \"legal\", \"urgency_score\": 0.4}\n```",
			want:  types.Classification{Category: types.CategoryLegal, UrgencyScore: 0.4},
		},
		{
			name:  "clamped",
			text:  "login fails",
			reply: `{"category": "Technical", "urgency_score": 1.7}`,
			want:  types.Classification{Category: types.CategoryTechnical, UrgencyScore: 1},
		},
		{
			name:  "severe keyword bump",
			text:  "The dashboard is broken",
			reply: `{"category": "Technical", "urgency_score": 0.1}`,
			want:  types.Classification{Category: types.CategoryTechnical, UrgencyScore: 0.9},
		},
		{
			name:    "unknown category",
			text:    "x",
			reply:   `{"category": "Sales", "urgency_score": 0.5}`,
			wantErr: true,
		},
		{
			name:    "missing urgency",
			text:    "x",
			reply:   `{"category": "Billing"}`,
			wantErr: true,
		},
		{
			name:    "no json",
			text:    "x",
			reply:   "I cannot help with that.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := interpret(tt.text, tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLLMRequiresKey(t *testing.T) {
	_, err := NewLLM("", "", zerolog.Nop())
	assert.Error(t, err)

	c, err := NewLLM("test-key", "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.model)
}
