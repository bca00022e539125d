package services

import (
	"time"

	"fundametrics/types"
	"fundametrics/utils/constants"
)

// GradeForScore maps a confidence score to its grade band.
func GradeForScore(score int) string {
	switch {
	case score <= 0:
		return "none"
	case score >= constants.GradeHighMin:
		return "high"
	case score >= constants.GradeMediumMin:
		return "medium"
	case score >= constants.GradeLowMin:
		return "low"
	default:
		return "very_low"
	}
}

// CapConfidence clamps a score to [0, maximum] and re-grades it. Factors
// keep their original values so the pre-cap evidence stays auditable.
func CapConfidence(confidence *types.ConfidenceScore, maximum int) *types.ConfidenceScore {
	if confidence == nil {
		return nil
	}
	capped := confidence.Score
	if capped > maximum {
		capped = maximum
	}
	if capped < 0 {
		capped = 0
	}
	if capped == confidence.Score {
		return confidence
	}
	return &types.ConfidenceScore{
		Score:   capped,
		Grade:   GradeForScore(capped),
		Factors: confidence.Factors,
	}
}

func sourceScore(sourceType *string) int {
	if sourceType == nil {
		return 0
	}
	if weight, ok := constants.SourceWeights[*sourceType]; ok {
		return weight
	}
	return constants.DefaultSourceWeight
}

func freshnessScore(generatedAt *time.Time, now time.Time, ttlHours *float64, ratio *float64) int {
	if ratio != nil {
		return freshnessFromRatio(*ratio)
	}
	if generatedAt == nil || ttlHours == nil || *ttlHours <= 0 {
		return 0
	}
	ageHours := now.Sub(*generatedAt).Hours()
	if ageHours <= 0 {
		return 25
	}
	return freshnessFromRatio(ageHours / *ttlHours)
}

func freshnessFromRatio(ratio float64) int {
	switch {
	case ratio <= 0.25:
		return 25
	case ratio <= 0.5:
		return 18
	case ratio <= 0.75:
		return 10
	case ratio <= 1:
		return 5
	default:
		return 0
	}
}

func statementScore(status string) int {
	switch status {
	case "matched", "single":
		return 20
	case "compatible", "multi":
		return 10
	default:
		return 0
	}
}

func completenessScore(state string, ratio *float64) int {
	if ratio != nil {
		switch {
		case *ratio >= 0.999:
			return 15
		case *ratio >= 0.5:
			return 5
		default:
			return 0
		}
	}
	switch state {
	case "complete":
		return 15
	case "partial":
		return 5
	default:
		return 0
	}
}

func stabilityScore(stability *int) int {
	if stability == nil {
		return 0
	}
	value := *stability
	if value < 0 {
		return 0
	}
	if value > 10 {
		return 10
	}
	return value
}

// ComputeConfidence scores a metric from the evidence attached to it.
// Absent metrics always score zero with no factors. Identical inputs
// and clock always produce the identical score.
func ComputeConfidence(metric types.MetricValue, statement *types.FinancialStatement, now time.Time) *types.ConfidenceScore {
	if metric.Value == nil {
		return &types.ConfidenceScore{Score: 0, Grade: "none", Factors: map[string]int{}}
	}

	ctx := metric.ConfidenceInputs
	if ctx == nil {
		ctx = &types.ConfidenceContext{}
	}

	sourceType := ctx.SourceType
	if sourceType == nil && statement != nil && len(statement.Sources) > 0 {
		sourceType = &statement.Sources[0]
	}

	factors := map[string]int{
		"source":          sourceScore(sourceType),
		"freshness":       freshnessScore(ctx.GeneratedAt, now, ctx.TTLHours, ctx.FreshnessRatio),
		"statement_match": statementScore(ctx.StatementStatus),
		"completeness":    completenessScore(ctx.Completeness, ctx.CompletenessRatio),
	}
	if stability := stabilityScore(ctx.Stability); stability != 0 {
		factors["stability"] = stability
	}

	score := 0
	for _, value := range factors {
		score += value
	}
	return &types.ConfidenceScore{Score: score, Grade: GradeForScore(score), Factors: factors}
}
