package services

import (
	"testing"
	"time"

	"fundametrics/types"
	"fundametrics/utils/helpers"
)

var confidenceNow = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestComputeConfidence_AbsentValueScoresZero(t *testing.T) {
	metric := types.MetricValue{Unit: "INR", Reason: "Revenue unavailable"}
	got := ComputeConfidence(metric, nil, confidenceNow)
	if got.Score != 0 || got.Grade != "none" {
		t.Errorf("Expected score 0 grade none, got %d %q", got.Score, got.Grade)
	}
	if len(got.Factors) != 0 {
		t.Errorf("Expected empty factors, got %v", got.Factors)
	}
}

func TestComputeConfidence_FactorsSumToScore(t *testing.T) {
	generated := confidenceNow.Add(-1 * time.Hour)
	metric := types.MetricValue{
		Value: helpers.FloatPtr(12.5),
		Unit:  "%",
		ConfidenceInputs: &types.ConfidenceContext{
			SourceType:   strPtr("exchange"),
			GeneratedAt:  &generated,
			TTLHours:     helpers.FloatPtr(24),
			StatementStatus: "matched",
			Completeness: "complete",
			Stability:    intPtr(7),
		},
	}
	got := ComputeConfidence(metric, nil, confidenceNow)
	sum := 0
	for _, v := range got.Factors {
		sum += v
	}
	if sum != got.Score {
		t.Errorf("Factors sum %d != score %d", sum, got.Score)
	}
	// exchange 30 + fresh 25 + matched 20 + complete 15 + stability 7
	if got.Score != 97 {
		t.Errorf("Expected 97, got %d", got.Score)
	}
	if got.Grade != "high" {
		t.Errorf("Expected high, got %q", got.Grade)
	}
}

func TestComputeConfidence_Deterministic(t *testing.T) {
	metric := types.MetricValue{
		Value: helpers.FloatPtr(3.14),
		ConfidenceInputs: &types.ConfidenceContext{
			SourceType:      strPtr("aggregator"),
			FreshnessRatio:  helpers.FloatPtr(0.4),
			StatementStatus: "matched",
			Completeness:    "partial",
		},
	}
	first := ComputeConfidence(metric, nil, confidenceNow)
	second := ComputeConfidence(metric, nil, confidenceNow)
	if first.Score != second.Score || first.Grade != second.Grade {
		t.Errorf("Scores diverged: %d/%s vs %d/%s", first.Score, first.Grade, second.Score, second.Grade)
	}
}

func TestComputeConfidence_UnknownSourceFallsBackToScrapeWeight(t *testing.T) {
	metric := types.MetricValue{
		Value:            helpers.FloatPtr(1),
		ConfidenceInputs: &types.ConfidenceContext{SourceType: strPtr("carrier_pigeon")},
	}
	got := ComputeConfidence(metric, nil, confidenceNow)
	if got.Factors["source"] != 12 {
		t.Errorf("Expected scrape weight 12, got %d", got.Factors["source"])
	}
}

func TestComputeConfidence_StatementSourcesFallback(t *testing.T) {
	metric := types.MetricValue{Value: helpers.FloatPtr(1)}
	statement := &types.FinancialStatement{Sources: []string{"annual_report"}}
	got := ComputeConfidence(metric, statement, confidenceNow)
	if got.Factors["source"] != 28 {
		t.Errorf("Expected annual_report weight 28, got %d", got.Factors["source"])
	}
}

func TestComputeConfidence_FreshnessBuckets(t *testing.T) {
	cases := []struct {
		ratio float64
		want  int
	}{
		{-1, 25},
		{0, 25},
		{0.25, 25},
		{0.4, 18},
		{0.6, 10},
		{0.9, 5},
		{1.5, 0},
	}
	for _, tc := range cases {
		metric := types.MetricValue{
			Value:            helpers.FloatPtr(1),
			ConfidenceInputs: &types.ConfidenceContext{FreshnessRatio: helpers.FloatPtr(tc.ratio)},
		}
		got := ComputeConfidence(metric, nil, confidenceNow)
		if got.Factors["freshness"] != tc.want {
			t.Errorf("ratio %v: expected freshness %d, got %d", tc.ratio, tc.want, got.Factors["freshness"])
		}
	}
}

func TestComputeConfidence_ExpiredTTLScoresZeroFreshness(t *testing.T) {
	generated := confidenceNow.Add(-48 * time.Hour)
	metric := types.MetricValue{
		Value: helpers.FloatPtr(1),
		ConfidenceInputs: &types.ConfidenceContext{
			GeneratedAt: &generated,
			TTLHours:    helpers.FloatPtr(24),
		},
	}
	got := ComputeConfidence(metric, nil, confidenceNow)
	if got.Factors["freshness"] != 0 {
		t.Errorf("Expected 0, got %d", got.Factors["freshness"])
	}
}

func TestComputeConfidence_StabilityClamped(t *testing.T) {
	metric := types.MetricValue{
		Value:            helpers.FloatPtr(1),
		ConfidenceInputs: &types.ConfidenceContext{Stability: intPtr(25)},
	}
	got := ComputeConfidence(metric, nil, confidenceNow)
	if got.Factors["stability"] != 10 {
		t.Errorf("Expected clamp to 10, got %d", got.Factors["stability"])
	}

	metric.ConfidenceInputs = &types.ConfidenceContext{Stability: intPtr(-5)}
	got = ComputeConfidence(metric, nil, confidenceNow)
	if _, ok := got.Factors["stability"]; ok {
		t.Errorf("Negative stability must not appear in factors, got %v", got.Factors)
	}
}

func TestGradeForScore_Thresholds(t *testing.T) {
	cases := map[int]string{
		0:   "none",
		-3:  "none",
		1:   "very_low",
		29:  "very_low",
		30:  "low",
		59:  "low",
		60:  "medium",
		84:  "medium",
		85:  "high",
		100: "high",
	}
	for score, want := range cases {
		if got := GradeForScore(score); got != want {
			t.Errorf("GradeForScore(%d) = %q, want %q", score, got, want)
		}
	}
}

func TestCapConfidence(t *testing.T) {
	original := &types.ConfidenceScore{
		Score:   90,
		Grade:   "high",
		Factors: map[string]int{"source": 30, "freshness": 25, "statement_match": 20, "completeness": 15},
	}
	capped := CapConfidence(original, 55)
	if capped.Score != 55 || capped.Grade != "low" {
		t.Errorf("Expected 55/low, got %d/%q", capped.Score, capped.Grade)
	}
	// factors stay as pre-cap evidence
	if capped.Factors["source"] != 30 {
		t.Errorf("Factors must survive the cap, got %v", capped.Factors)
	}
	// cap above the score is a no-op returning the same score
	if same := CapConfidence(original, 95); same.Score != 90 {
		t.Errorf("Expected unchanged 90, got %d", same.Score)
	}
	if below := CapConfidence(original, -5); below.Score != 0 || below.Grade != "none" {
		t.Errorf("Expected floor at 0/none, got %d/%q", below.Score, below.Grade)
	}
}
