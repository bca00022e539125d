package services

import (
	"testing"
	"time"

	"fundametrics/types"
	"fundametrics/utils/helpers"
)

var engineNow = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

func fixedMetricsEngine() *MetricsEngine {
	return &MetricsEngine{Now: func() time.Time { return engineNow }}
}

func taggedMetric(value float64, statementID string) types.MetricValue {
	return types.MetricValue{Value: helpers.FloatPtr(value), Unit: "INR", StatementID: statementID}
}

const (
	stmt2022 = "CONSOLIDATED_NSE_ANNUAL_2022-03-31"
	stmt2023 = "CONSOLIDATED_NSE_ANNUAL_2023-03-31"
)

func fixtureIncome() types.StatementTable {
	return types.StatementTable{
		"Mar 2022": {
			"revenue":           taggedMetric(1000, stmt2022),
			"operating_profit":  taggedMetric(200, stmt2022),
			"net_income":        taggedMetric(150, stmt2022),
			"interest":          taggedMetric(50, stmt2022),
			"profit_before_tax": taggedMetric(210, stmt2022),
		},
		"Mar 2023": {
			"revenue":           taggedMetric(1200, stmt2023),
			"operating_profit":  taggedMetric(240, stmt2023),
			"net_income":        taggedMetric(180, stmt2023),
			"interest":          taggedMetric(60, stmt2023),
			"profit_before_tax": taggedMetric(250, stmt2023),
		},
	}
}

func fixtureBalance() types.StatementTable {
	return types.StatementTable{
		"Mar 2022": {
			"total_assets":   taggedMetric(2000, stmt2022),
			"borrowings":     taggedMetric(400, stmt2022),
			"equity_capital": taggedMetric(500, stmt2022),
			"reserves":       taggedMetric(300, stmt2022),
		},
		"Mar 2023": {
			"total_assets":   taggedMetric(2400, stmt2023),
			"borrowings":     taggedMetric(440, stmt2023),
			"equity_capital": taggedMetric(550, stmt2023),
			"reserves":       taggedMetric(350, stmt2023),
		},
	}
}

func wantValue(t *testing.T, metrics map[string]types.MetricValue, key string, want float64) {
	t.Helper()
	metric, ok := metrics[key]
	if !ok {
		t.Fatalf("%s missing from result", key)
	}
	if metric.Value == nil {
		t.Fatalf("%s absent, reason %q", key, metric.Reason)
	}
	if *metric.Value != want {
		t.Errorf("%s = %v, want %v", key, *metric.Value, want)
	}
}

func TestCalcOperatingMargin(t *testing.T) {
	engine := fixedMetricsEngine()

	got := engine.CalcOperatingMargin(taggedMetric(1000, stmt2023), taggedMetric(200, stmt2023))
	if got.Value == nil || *got.Value != 20.0 {
		t.Errorf("Expected 20.0, got %v", got.Value)
	}
	if got.StatementID != stmt2023 || !got.Computed {
		t.Errorf("Expected computed metric carrying %s, got %+v", stmt2023, got)
	}

	// zero revenue
	got = engine.CalcOperatingMargin(taggedMetric(0, stmt2023), taggedMetric(200, stmt2023))
	if got.Value != nil || got.Reason != "Insufficient data" {
		t.Errorf("Expected Insufficient data, got %+v", got)
	}

	// negative operating profit is still a valid margin
	got = engine.CalcOperatingMargin(taggedMetric(1000, stmt2023), taggedMetric(-100, stmt2023))
	if got.Value == nil || *got.Value != -10.0 {
		t.Errorf("Expected -10.0, got %v", got.Value)
	}
}

func TestCalcOperatingMargin_CrossStatementMismatch(t *testing.T) {
	engine := fixedMetricsEngine()
	got := engine.CalcOperatingMargin(taggedMetric(1000, stmt2022), taggedMetric(200, stmt2023))
	if got.Value != nil {
		t.Fatalf("Expected absent metric, got %v", *got.Value)
	}
	if got.Reason != "Cross-statement mismatch" {
		t.Errorf("Expected Cross-statement mismatch, got %q", got.Reason)
	}
}

func TestCalcPERatio_NegativeEPSRefused(t *testing.T) {
	engine := fixedMetricsEngine()
	got := engine.CalcPERatio(50, taggedMetric(-0.18, stmt2023))
	if got.Value != nil {
		t.Fatalf("Expected absent metric, got %v", *got.Value)
	}
	if got.Reason != "Insufficient data or negative EPS" {
		t.Errorf("Unexpected reason %q", got.Reason)
	}
}

func TestComputeGrowthRate(t *testing.T) {
	engine := fixedMetricsEngine()

	rate := engine.ComputeGrowthRate(100, 150, 2)
	if rate == nil || *rate != 22.47 {
		t.Errorf("Expected 22.47, got %v", rate)
	}
	if rate := engine.ComputeGrowthRate(0, 150, 2); rate != nil {
		t.Errorf("Expected nil for zero start, got %v", *rate)
	}
	if rate := engine.ComputeGrowthRate(100, -50, 2); rate != nil {
		t.Errorf("Expected nil for negative transition, got %v", *rate)
	}
	if rate := engine.ComputeGrowthRate(-10, -5, 1); rate != nil {
		t.Errorf("Expected nil for negative start, got %v", *rate)
	}
	if rate := engine.ComputeGrowthRate(100, 150, 0); rate != nil {
		t.Errorf("Expected nil for zero periods, got %v", *rate)
	}
}

func TestCalcMarketCap(t *testing.T) {
	engine := fixedMetricsEngine()
	got := engine.CalcMarketCap(250, 1000000)
	if got == nil || *got != 250000000 {
		t.Errorf("Expected 250000000, got %v", got)
	}
	if got := engine.CalcMarketCap(0, 1000000); got != nil {
		t.Errorf("Expected nil, got %v", *got)
	}
	if got := engine.CalcMarketCap(250, 0); got != nil {
		t.Errorf("Expected nil, got %v", *got)
	}
}

func TestComputeMetricValues_FullFixture(t *testing.T) {
	engine := fixedMetricsEngine()
	metrics := engine.ComputeMetricValues(
		fixtureIncome(), fixtureBalance(),
		helpers.FloatPtr(1000), helpers.FloatPtr(50), nil)

	wantValue(t, metrics, "fundametrics_operating_margin", 20.0)
	wantValue(t, metrics, "fundametrics_net_margin", 15.0)
	// EBIT backfilled from PBT + interest: (250+60)/60
	wantValue(t, metrics, "fundametrics_interest_coverage", 5.17)
	wantValue(t, metrics, "fundametrics_asset_turnover", 0.5)
	// average equity (900+800)/2 = 850
	wantValue(t, metrics, "fundametrics_return_on_equity", 21.18)
	wantValue(t, metrics, "fundametrics_debt_to_equity", 0.49)
	wantValue(t, metrics, "fundametrics_eps", 0.18)
	wantValue(t, metrics, "fundametrics_book_value_per_share", 0.9)
	wantValue(t, metrics, "fundametrics_pe_ratio", 277.78)
	wantValue(t, metrics, "fundametrics_price_to_book", 55.56)
	wantValue(t, metrics, "fundametrics_sales_growth_1y", 20.0)
	wantValue(t, metrics, "fundametrics_profit_growth_1y", 20.0)
	wantValue(t, metrics, "fundametrics_growth_rate_internal", 20.0)

	// not enough history for the longer horizons
	if metrics["fundametrics_roe_3y"].Value != nil {
		t.Errorf("Expected fundametrics_roe_3y absent, got %v", *metrics["fundametrics_roe_3y"].Value)
	}
	if metrics["fundametrics_market_cap"].Value != nil || metrics["fundametrics_market_cap"].Reason != "Not computed" {
		t.Errorf("Market cap must stay unfilled here, got %+v", metrics["fundametrics_market_cap"])
	}

	// every metric leaves the engine with a confidence attached
	for key, metric := range metrics {
		if metric.Confidence == nil {
			t.Errorf("%s has no confidence", key)
		}
	}

	// matched statements on the margin path
	margin := metrics["fundametrics_operating_margin"]
	if margin.ConfidenceInputs == nil || margin.ConfidenceInputs.StatementStatus != "matched" {
		t.Errorf("Expected matched statement status, got %+v", margin.ConfidenceInputs)
	}
	if margin.Confidence.Factors["source"] != 30 {
		t.Errorf("NSE-tagged metric must score exchange weight, got %d", margin.Confidence.Factors["source"])
	}

	// untagged shares input degrades statement status to partial
	eps := metrics["fundametrics_eps"]
	if eps.ConfidenceInputs == nil || eps.ConfidenceInputs.StatementStatus != "partial" {
		t.Errorf("Expected partial statement status for EPS, got %+v", eps.ConfidenceInputs)
	}
}

func TestComputeMetricValues_EmptyIncome(t *testing.T) {
	engine := fixedMetricsEngine()
	metrics := engine.ComputeMetricValues(nil, nil, nil, nil, nil)

	if len(metrics) == 0 {
		t.Fatal("Expected the full metric catalog")
	}
	for key, metric := range metrics {
		if metric.Value != nil {
			t.Errorf("%s should be absent, got %v", key, *metric.Value)
		}
		if metric.Reason != "Not computed" {
			t.Errorf("%s reason = %q, want Not computed", key, metric.Reason)
		}
	}
}

func TestComputeMetricValues_Deterministic(t *testing.T) {
	first := fixedMetricsEngine().ComputeMetricValues(
		fixtureIncome(), fixtureBalance(), helpers.FloatPtr(1000), helpers.FloatPtr(50), nil)
	second := fixedMetricsEngine().ComputeMetricValues(
		fixtureIncome(), fixtureBalance(), helpers.FloatPtr(1000), helpers.FloatPtr(50), nil)

	for key, metric := range first {
		other := second[key]
		switch {
		case metric.Value == nil && other.Value == nil:
		case metric.Value != nil && other.Value != nil && *metric.Value == *other.Value:
		default:
			t.Errorf("%s values diverged between runs", key)
		}
		if metric.Confidence != nil && other.Confidence != nil && metric.Confidence.Score != other.Confidence.Score {
			t.Errorf("%s confidence diverged: %d vs %d", key, metric.Confidence.Score, other.Confidence.Score)
		}
	}
}

func TestComputeMetricValues_UntaggedEquityBlocksROE(t *testing.T) {
	income := fixtureIncome()
	balance := types.StatementTable{
		"Mar 2022": {"equity_capital": {Value: helpers.FloatPtr(500), Unit: "INR"}, "reserves": {Value: helpers.FloatPtr(300), Unit: "INR"}},
		"Mar 2023": {"equity_capital": {Value: helpers.FloatPtr(550), Unit: "INR"}, "reserves": {Value: helpers.FloatPtr(350), Unit: "INR"}},
	}
	metrics := fixedMetricsEngine().ComputeMetricValues(income, balance, nil, nil, nil)

	roe := metrics["fundametrics_return_on_equity"]
	if roe.Value != nil {
		t.Fatalf("Expected absent ROE for untagged equity, got %v", *roe.Value)
	}
	if roe.Reason != "Insufficient equity history" {
		t.Errorf("Expected Insufficient equity history, got %q", roe.Reason)
	}
}

func TestComputeMetricValues_FreshnessFromMetadata(t *testing.T) {
	generated := engineNow.Add(-6 * time.Hour)
	metadata := &types.ComputeMetadata{
		Generated: &generated,
		TTLHours:  helpers.FloatPtr(24),
	}
	metrics := fixedMetricsEngine().ComputeMetricValues(
		fixtureIncome(), fixtureBalance(), helpers.FloatPtr(1000), helpers.FloatPtr(50), metadata)

	margin := metrics["fundametrics_operating_margin"]
	if margin.ConfidenceInputs == nil || margin.ConfidenceInputs.FreshnessRatio == nil {
		t.Fatal("Expected freshness ratio in confidence inputs")
	}
	if *margin.ConfidenceInputs.FreshnessRatio != 0.25 {
		t.Errorf("Expected ratio 0.25, got %v", *margin.ConfidenceInputs.FreshnessRatio)
	}
	if margin.Confidence.Factors["freshness"] != 25 {
		t.Errorf("Expected freshness factor 25, got %d", margin.Confidence.Factors["freshness"])
	}
}

func TestCalcProfitStabilityIndex(t *testing.T) {
	engine := fixedMetricsEngine()

	margins := []types.MetricValue{
		{Value: helpers.FloatPtr(10)},
		{Value: helpers.FloatPtr(12)},
		{Value: helpers.FloatPtr(14)},
	}
	got := engine.CalcProfitStabilityIndex(margins)
	// sample stdev of 10,12,14 is 2
	if got.Value == nil || *got.Value != 0.5 {
		t.Errorf("Expected 0.5, got %v", got.Value)
	}

	flat := []types.MetricValue{{Value: helpers.FloatPtr(10)}, {Value: helpers.FloatPtr(10)}}
	got = engine.CalcProfitStabilityIndex(flat)
	if got.Value != nil || got.Reason != "Zero variance" {
		t.Errorf("Expected Zero variance, got %+v", got)
	}

	got = engine.CalcProfitStabilityIndex(margins[:1])
	if got.Value != nil || got.Reason != "Insufficient history" {
		t.Errorf("Expected Insufficient history, got %+v", got)
	}
}

func TestAnalyzeCompanyHistory(t *testing.T) {
	engine := fixedMetricsEngine()
	income := types.StatementTable{
		"FY2021": {"revenue": taggedMetric(800, ""), "operating_profit": taggedMetric(160, ""), "net_income": taggedMetric(120, "")},
		"FY2022": {"revenue": taggedMetric(1000, ""), "operating_profit": taggedMetric(200, ""), "net_income": taggedMetric(150, "")},
		"FY2023": {"revenue": taggedMetric(1200, ""), "operating_profit": taggedMetric(240, ""), "net_income": taggedMetric(180, "")},
	}

	analysis := engine.AnalyzeCompanyHistory(income)
	if len(analysis.AnnualMetrics) != 3 {
		t.Fatalf("Expected 3 annual entries, got %d", len(analysis.AnnualMetrics))
	}
	margin := analysis.AnnualMetrics["FY2022"]["fundametrics_operating_margin"]
	if margin.Value == nil || *margin.Value != 20.0 {
		t.Errorf("Expected 20.0 margin, got %v", margin.Value)
	}
	growth := analysis.GrowthMetrics["fundametrics_revenue_growth_annualized"]
	if growth == nil || *growth != 22.47 {
		t.Errorf("Expected 22.47, got %v", growth)
	}

	empty := engine.AnalyzeCompanyHistory(nil)
	if len(empty.AnnualMetrics) != 0 || empty.GrowthMetrics != nil {
		t.Errorf("Expected empty analysis, got %+v", empty)
	}
}
