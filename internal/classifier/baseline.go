// Package classifier assigns a category and an urgency score to ticket text.
package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/dennisdiepolder/monti/orchestrator/internal/embedding"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

const (
	urgentScore = 0.9
	normalScore = 0.3
)

var urgencyPattern = regexp.MustCompile(`(?i)\b(broken|asap|urgent|down|critical|emergency)\b`)

// seedTexts bootstrap the keyword lexicon for each category
var seedTexts = map[types.Category][]string{
	types.CategoryBilling: {
		"I need help with my invoice and billing details.",
		"My credit card was charged twice.",
		"Can I change my payment method?",
		"Refund the subscription fee, the price on my receipt is wrong.",
	},
	types.CategoryTechnical: {
		"The system keeps crashing when I login.",
		"I am getting a 500 internal server error.",
		"The API endpoint is returning timeout errors.",
		"The app is down, the page will not load and the server is broken.",
	},
	types.CategoryLegal: {
		"I need a copy of the terms of service.",
		"We want to discuss the GDPR compliance and privacy policy.",
		"Our legal team wants to review the contract.",
		"Our lawyer asked about liability and the data processing agreement.",
	},
}

var stopWords = map[string]bool{
	"a": true, "about": true, "am": true, "and": true, "asked": true, "can": true,
	"copy": true, "i": true, "is": true, "keeps": true, "my": true, "need": true,
	"not": true, "of": true, "on": true, "our": true, "the": true, "to": true,
	"want": true, "wants": true, "was": true, "we": true, "when": true, "will": true,
	"with": true, "help": true, "service": true, "getting": true, "change": true, "discuss": true,
}

// tieOrder decides between categories with equal keyword hits, and is the
// answer for text without any known keyword.
var tieOrder = []types.Category{types.CategoryBilling, types.CategoryLegal, types.CategoryTechnical}

// Baseline is a keyword classifier with a regex urgency heuristic. It is
// fast, deterministic, and never fails, which makes it the fallback.
type Baseline struct {
	lexicon map[string]types.Category
}

// NewBaseline builds the lexicon from the seed texts
func NewBaseline() *Baseline {
	lexicon := make(map[string]types.Category)
	for _, category := range tieOrder {
		for _, text := range seedTexts[category] {
			for _, tok := range embedding.Tokenize(text) {
				if stopWords[tok] || len(tok) < 3 {
					continue
				}
				if _, seen := lexicon[tok]; !seen {
					lexicon[tok] = category
				}
			}
		}
	}
	return &Baseline{lexicon: lexicon}
}

// Classify returns the category with the most keyword hits and the urgency
// derived from UrgencyScore.
func (b *Baseline) Classify(_ context.Context, text string) types.Classification {
	hits := make(map[types.Category]int)
	for _, tok := range embedding.Tokenize(text) {
		if category, ok := b.lexicon[tok]; ok {
			hits[category]++
		}
	}

	best := tieOrder[0]
	for _, category := range tieOrder[1:] {
		if hits[category] > hits[best] {
			best = category
		}
	}

	return types.Classification{
		Category:     best,
		UrgencyScore: UrgencyScore(text),
	}
}

// Primary adapts the baseline to the primary classifier signature
func (b *Baseline) Primary(ctx context.Context, text string) (types.Classification, error) {
	return b.Classify(ctx, text), nil
}

// UrgencyScore is 0.9 when text contains an urgency keyword and 0.3 otherwise
func UrgencyScore(text string) float64 {
	if urgencyPattern.MatchString(text) {
		return urgentScore
	}
	return normalScore
}

// severeKeywords lift a model's urgency to at least 0.9
var severeKeywords = []string{"broken", "asap", "emergency", "critical", "down"}

func bumpUrgency(text string, score float64) float64 {
	lower := strings.ToLower(text)
	for _, kw := range severeKeywords {
		if strings.Contains(lower, kw) && score < urgentScore {
			return urgentScore
		}
	}
	return score
}
