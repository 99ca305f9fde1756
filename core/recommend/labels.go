package recommend

import (
	"strings"

	"github.com/kilianp07/evreco/core/model"
)

// LabelSource selects how training targets are derived from a booking.
type LabelSource string

const (
	// LabelKeywords scores the user remark by keyword.
	LabelKeywords LabelSource = "keywords"
	// LabelRating uses the numeric user rating when set and keywords otherwise.
	LabelRating LabelSource = "rating"
)

const (
	BaseLabel     = 3.0
	PositiveLabel = 4.5
	NegativeLabel = 2.0
)

var (
	positiveWords = []string{"good", "excellent"}
	negativeWords = []string{"bad", "poor"}
)

// KeywordLabel derives a target from free text. Positive words win over
// negative ones. Matching is a case-insensitive substring test, so
// "not good" counts as positive.
func KeywordLabel(remark string) float64 {
	r := strings.ToLower(remark)
	if containsAny(r, positiveWords) {
		return PositiveLabel
	}
	if containsAny(r, negativeWords) {
		return NegativeLabel
	}
	return BaseLabel
}

// Label derives the training target of b.
func Label(b model.Booking, src LabelSource) float64 {
	if src == LabelRating && b.UserRating >= 1 && b.UserRating <= 5 {
		return float64(b.UserRating)
	}
	return KeywordLabel(b.UserRemark)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
