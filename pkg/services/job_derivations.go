package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Sentiment labels stored in job_fact.sentiment_label.
const (
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
	SentimentPositive = "Positive"
)

var (
	thousand     = decimal.NewFromInt(1000)
	salaryStrip  = strings.NewReplacer("$", "", "K", "", "k", "")
	benefitStrip = strings.NewReplacer("{", "", "}", "", "'", "")
)

// ParseSalaryRange parses ranges such as "$59K-$99K" into annual amounts.
// Each bound is independently null when it cannot be parsed; a value without
// a hyphen yields two nulls.
func ParseSalaryRange(raw *string) (salaryMin, salaryMax decimal.NullDecimal) {
	if raw == nil {
		return salaryMin, salaryMax
	}

	s := strings.Join(strings.Fields(salaryStrip.Replace(*raw)), "")
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		return salaryMin, salaryMax
	}

	return parseThousands(lo), parseThousands(hi)
}

func parseThousands(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Mul(thousand).Round(2))
}

// CleanBenefits strips set-literal punctuation from a benefits list,
// e.g. "{'Health Insurance', 'PTO'}" becomes "Health Insurance, PTO".
func CleanBenefits(raw *string) *string {
	if raw == nil {
		return nil
	}
	cleaned := benefitStrip.Replace(*raw)
	return &cleaned
}

// ClassifySentiment buckets a score in [0,1]: below 0.4 is Negative, above 0.6
// is Positive, and the closed interval between is Neutral.
func ClassifySentiment(score *float64) *string {
	if score == nil {
		return nil
	}
	label := SentimentNeutral
	switch {
	case *score < 0.4:
		label = SentimentNegative
	case *score > 0.6:
		label = SentimentPositive
	}
	return &label
}
