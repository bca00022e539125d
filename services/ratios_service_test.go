package services

import (
	"testing"
	"time"

	"fundametrics/types"
	"fundametrics/utils/helpers"
)

func fixedRatiosEngine() *RatiosEngine {
	return &RatiosEngine{Now: func() time.Time { return engineNow }}
}

func TestRatiosCompute_EmptyIncome(t *testing.T) {
	engine := fixedRatiosEngine()
	if got := engine.Compute(nil, nil, nil); len(got) != 0 {
		t.Errorf("Expected empty result, got %d ratios", len(got))
	}
}

func TestRatiosCompute_FullFixture(t *testing.T) {
	engine := fixedRatiosEngine()
	metadata := &types.ComputeMetadata{
		SharesOutstanding: helpers.FloatPtr(1000),
		SharePrice:        helpers.FloatPtr(50),
	}
	ratios := engine.Compute(fixtureIncome(), fixtureBalance(), metadata)

	wantValue(t, ratios, "operating_margin", 20.0)
	wantValue(t, ratios, "net_profit_margin", 15.0)
	// four decimal places on the ratio path
	wantValue(t, ratios, "return_on_equity", 21.1765)
	// EBIT proxied by operating profit, capital employed = equity + debt
	wantValue(t, ratios, "return_on_capital_employed", 17.91)
	wantValue(t, ratios, "earnings_per_share", 0.18)
	wantValue(t, ratios, "price_to_earnings", 277.7778)
	wantValue(t, ratios, "book_value_per_share", 0.9)
	wantValue(t, ratios, "price_to_book", 55.5556)
	wantValue(t, ratios, "debt_to_equity", 0.4889)
	wantValue(t, ratios, "interest_coverage", 4.0)

	for key, ratio := range ratios {
		if ratio.Confidence == nil {
			t.Errorf("%s has no confidence", key)
		}
	}
}

func TestRatiosCompute_NegativeEPSStillPricesEarnings(t *testing.T) {
	income := fixtureIncome()
	row := income["Mar 2023"]
	row["net_income"] = taggedMetric(-180, stmt2023)

	metadata := &types.ComputeMetadata{
		SharesOutstanding: helpers.FloatPtr(1000),
		SharePrice:        helpers.FloatPtr(50),
	}
	ratios := fixedRatiosEngine().Compute(income, fixtureBalance(), metadata)

	wantValue(t, ratios, "earnings_per_share", -0.18)
	// the ratio path carries negative P/E through instead of refusing it
	wantValue(t, ratios, "price_to_earnings", -277.7778)
}

func TestRatiosCompute_DownstreamCapping(t *testing.T) {
	metadata := &types.ComputeMetadata{
		SharesOutstanding: helpers.FloatPtr(1000),
		SharePrice:        helpers.FloatPtr(50),
	}
	ratios := fixedRatiosEngine().Compute(fixtureIncome(), fixtureBalance(), metadata)

	pe := ratios["price_to_earnings"]
	eps := ratios["earnings_per_share"]
	if pe.Confidence == nil || eps.Confidence == nil {
		t.Fatal("Expected confidence on both ratios")
	}
	if pe.Confidence.Score > eps.Confidence.Score {
		t.Errorf("P/E score %d must not exceed its EPS input %d", pe.Confidence.Score, eps.Confidence.Score)
	}
	// the untagged share price input drags the cap down too
	if pe.Confidence.Score > 20 {
		t.Errorf("P/E score %d must not exceed the share price input's 20", pe.Confidence.Score)
	}
}

func TestRatiosCompute_SharesFallbackFromEquityCapital(t *testing.T) {
	metadata := &types.ComputeMetadata{
		SharePrice: helpers.FloatPtr(50),
		Constants:  types.MetadataConstants{FaceValue: helpers.FloatPtr(10)},
	}
	ratios := fixedRatiosEngine().Compute(fixtureIncome(), fixtureBalance(), metadata)

	// shares = equity_capital 550 / face value 10 = 55
	wantValue(t, ratios, "earnings_per_share", 3.2727)
}

func TestRatiosCompute_StatementMismatchRefused(t *testing.T) {
	income := fixtureIncome()
	row := income["Mar 2023"]
	// revenue tagged to a different statement than operating profit
	row["revenue"] = taggedMetric(1200, stmt2022)

	ratios := fixedRatiosEngine().Compute(income, fixtureBalance(), nil)
	margin := ratios["operating_margin"]
	if margin.Value != nil {
		t.Fatalf("Expected absent margin on mismatch, got %v", *margin.Value)
	}
	if margin.Reason != "Operating margin unavailable" {
		t.Errorf("Unexpected reason %q", margin.Reason)
	}
	if margin.ConfidenceInputs == nil || margin.ConfidenceInputs.StatementStatus != "inconsistent" {
		t.Errorf("Expected inconsistent status, got %+v", margin.ConfidenceInputs)
	}
	if margin.Confidence == nil || margin.Confidence.Score != 0 {
		t.Errorf("Absent metric must score zero, got %+v", margin.Confidence)
	}
}

func TestRatiosCompute_Deterministic(t *testing.T) {
	metadata := &types.ComputeMetadata{
		SharesOutstanding: helpers.FloatPtr(1000),
		SharePrice:        helpers.FloatPtr(50),
	}
	first := fixedRatiosEngine().Compute(fixtureIncome(), fixtureBalance(), metadata)
	second := fixedRatiosEngine().Compute(fixtureIncome(), fixtureBalance(), metadata)

	if len(first) != len(second) {
		t.Fatalf("Result sizes diverged: %d vs %d", len(first), len(second))
	}
	for key, ratio := range first {
		other := second[key]
		switch {
		case ratio.Value == nil && other.Value == nil:
		case ratio.Value != nil && other.Value != nil && *ratio.Value == *other.Value:
		default:
			t.Errorf("%s values diverged between runs", key)
		}
		if ratio.Confidence.Score != other.Confidence.Score {
			t.Errorf("%s confidence diverged: %d vs %d", key, ratio.Confidence.Score, other.Confidence.Score)
		}
	}
}
