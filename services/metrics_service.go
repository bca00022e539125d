package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fundametrics/types"
	"fundametrics/utils/constants"
	"fundametrics/utils/helpers"
)

// MetricsEngine computes the fundametrics_* metric set from cleaned
// statement tables. The clock is injectable so identical inputs always
// score identically.
type MetricsEngine struct {
	Now func() time.Time
}

func NewMetricsEngine() *MetricsEngine {
	return &MetricsEngine{Now: func() time.Time { return time.Now().UTC() }}
}

func (e *MetricsEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func sourceFromStatementID(statementID string, computed bool) string {
	if statementID != "" {
		token := strings.ToUpper(statementID)
		if strings.Contains(token, "_NSE_") || strings.Contains(token, "_BSE_") {
			return "exchange"
		}
	}
	if computed {
		return "derived"
	}
	return "aggregator"
}

func statementStatus(inputs []types.MetricValue) string {
	if len(inputs) == 0 {
		return ""
	}
	ids := map[string]struct{}{}
	nonePresent := false
	for _, metric := range inputs {
		if metric.StatementID == "" {
			nonePresent = true
			continue
		}
		ids[metric.StatementID] = struct{}{}
	}
	if len(ids) == 0 {
		if nonePresent {
			return "partial"
		}
		return ""
	}
	if len(ids) == 1 {
		if nonePresent {
			return "partial"
		}
		return "matched"
	}
	return "inconsistent"
}

func completenessState(inputs []types.MetricValue) string {
	if len(inputs) == 0 {
		return ""
	}
	present := 0
	for _, metric := range inputs {
		if metric.Value != nil {
			present++
		}
	}
	switch present {
	case 0:
		return "missing"
	case len(inputs):
		return "complete"
	default:
		return "partial"
	}
}

func (e *MetricsEngine) seedConfidence(metric types.MetricValue, metadata *types.ComputeMetadata, inputs []types.MetricValue, stability *int) types.MetricValue {
	source := sourceFromStatementID(metric.StatementID, metric.Computed)
	ctx := &types.ConfidenceContext{
		SourceType: &source,
		Stability:  stability,
	}

	if metadata != nil {
		ctx.GeneratedAt = metadata.Generated
		ctx.TTLHours = metadata.TTLHours
		if metadata.Generated != nil && metadata.TTLHours != nil && *metadata.TTLHours > 0 {
			ratio := e.now().Sub(*metadata.Generated).Hours() / *metadata.TTLHours
			if ratio < 0 {
				ratio = 0
			}
			ctx.FreshnessRatio = helpers.FloatPtr(ratio)
		}
	}

	statusInputs := make([]types.MetricValue, 0, len(inputs)+1)
	statusInputs = append(statusInputs, inputs...)
	statusInputs = append(statusInputs, metric)
	ctx.StatementStatus = statementStatus(statusInputs)
	ctx.Completeness = completenessState(inputs)
	if len(inputs) > 0 {
		present := 0
		for _, input := range inputs {
			if input.Value != nil {
				present++
			}
		}
		ctx.CompletenessRatio = helpers.FloatPtr(float64(present) / float64(len(inputs)))
	}

	metric.ConfidenceInputs = ctx
	metric.Confidence = ComputeConfidence(metric, nil, e.now())
	return metric
}

func sumMetrics(metrics []types.MetricValue, unit, reason string) types.MetricValue {
	var base *types.MetricValue
	total := 0.0
	for i := range metrics {
		metric := metrics[i]
		if metric.Value == nil {
			return helpers.MetricMissing(unit, reason)
		}
		if base == nil {
			base = &metrics[i]
		} else if err := ValidateSameStatement(*base, metric); err != nil {
			return helpers.MetricMissing(unit, reason)
		}
		total += *metric.Value
	}
	if base == nil {
		return helpers.MetricMissing(unit, reason)
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(total)),
		Unit:        unit,
		StatementID: base.StatementID,
		Computed:    true,
	}
}

// fraction derives num/den carrying the given statement id. Percent
// results scale by 100; everything rounds to two decimals.
func fraction(num, den types.MetricValue, statementID, unit string, percent bool) types.MetricValue {
	if err := ValidateSameStatement(num, den); err != nil {
		return helpers.MetricMissing(unit, reasonCrossStatement)
	}
	if den.Value == nil || *den.Value == 0 || num.Value == nil {
		return helpers.MetricMissing(unit, reasonInsufficientData)
	}
	value := *num.Value / *den.Value
	if percent {
		value *= 100
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(value)),
		Unit:        unit,
		StatementID: statementID,
		Computed:    true,
	}
}

func (e *MetricsEngine) CalcOperatingMargin(revenue, operatingProfit types.MetricValue) types.MetricValue {
	return fraction(operatingProfit, revenue, revenue.StatementID, "%", true)
}

func (e *MetricsEngine) CalcNetMargin(revenue, netIncome types.MetricValue) types.MetricValue {
	return fraction(netIncome, revenue, revenue.StatementID, "%", true)
}

func (e *MetricsEngine) CalcROCE(ebit, capitalEmployed types.MetricValue) types.MetricValue {
	return fraction(ebit, capitalEmployed, ebit.StatementID, "%", true)
}

func (e *MetricsEngine) CalcAssetTurnover(revenue, totalAssets types.MetricValue) types.MetricValue {
	return fraction(revenue, totalAssets, revenue.StatementID, "x", false)
}

func (e *MetricsEngine) CalcInterestCoverage(ebit, interest types.MetricValue) types.MetricValue {
	return fraction(ebit, interest, ebit.StatementID, "x", false)
}

func (e *MetricsEngine) CalcEPS(netIncome, sharesOutstanding types.MetricValue) types.MetricValue {
	return fraction(netIncome, sharesOutstanding, netIncome.StatementID, "INR", false)
}

func (e *MetricsEngine) CalcDebtToEquity(totalDebt, totalEquity types.MetricValue) types.MetricValue {
	return fraction(totalDebt, totalEquity, totalDebt.StatementID, "x", false)
}

func (e *MetricsEngine) CalcBookValuePerShare(totalEquity, sharesOutstanding types.MetricValue) types.MetricValue {
	return fraction(totalEquity, sharesOutstanding, totalEquity.StatementID, "INR", false)
}

func (e *MetricsEngine) CalcPERatio(sharePrice float64, eps types.MetricValue) types.MetricValue {
	if sharePrice == 0 || eps.Value == nil || *eps.Value <= 0 {
		return helpers.MetricMissing("x", "Insufficient data or negative EPS")
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(sharePrice / *eps.Value)),
		Unit:        "x",
		StatementID: eps.StatementID,
		Computed:    true,
	}
}

func (e *MetricsEngine) CalcPriceToBook(sharePrice float64, bvps types.MetricValue) types.MetricValue {
	if sharePrice == 0 || bvps.Value == nil || *bvps.Value <= 0 {
		return helpers.MetricMissing("x", "Insufficient data or negative BVPS")
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(sharePrice / *bvps.Value)),
		Unit:        "x",
		StatementID: bvps.StatementID,
		Computed:    true,
	}
}

// CalcCapitalEfficiencyScore multiplies ROCE by asset turnover to grade
// how hard the capital base works.
func (e *MetricsEngine) CalcCapitalEfficiencyScore(roce, assetTurnover types.MetricValue) types.MetricValue {
	if err := ValidateSameStatement(roce, assetTurnover); err != nil {
		return helpers.MetricMissing("", reasonCrossStatement)
	}
	if roce.Value == nil || assetTurnover.Value == nil {
		return helpers.MetricMissing("", reasonInsufficientData)
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(*roce.Value * *assetTurnover.Value)),
		Unit:        "",
		StatementID: roce.StatementID,
		Computed:    true,
	}
}

func sampleStdev(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// CalcProfitStabilityIndex inverts the standard deviation of the net
// margin history. Flat histories have no defined index.
func (e *MetricsEngine) CalcProfitStabilityIndex(netMargins []types.MetricValue) types.MetricValue {
	if len(netMargins) < 2 {
		return helpers.MetricMissing("", "Insufficient history")
	}
	if err := ValidateSameStatement(netMargins...); err != nil {
		return helpers.MetricMissing("", reasonCrossStatement)
	}
	values := make([]float64, 0, len(netMargins))
	for _, margin := range netMargins {
		if margin.Value != nil {
			values = append(values, *margin.Value)
		}
	}
	if len(values) < 2 {
		return helpers.MetricMissing("", "Insufficient history")
	}
	stdev := sampleStdev(values)
	if stdev == 0 {
		return helpers.MetricMissing("", "Zero variance")
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(1 / stdev)),
		Unit:        "",
		StatementID: netMargins[len(netMargins)-1].StatementID,
		Computed:    true,
	}
}

func (e *MetricsEngine) CalcDebtSafetyIndicator(operatingCashFlow, totalDebt types.MetricValue) types.MetricValue {
	return fraction(operatingCashFlow, totalDebt, operatingCashFlow.StatementID, "x", false)
}

func (e *MetricsEngine) CalcEarningsQualityRatio(operatingCashFlow, netProfit types.MetricValue) types.MetricValue {
	return fraction(operatingCashFlow, netProfit, netProfit.StatementID, "x", false)
}

// CalcMarketCap multiplies share price by share count. Zero inputs mean
// no capitalisation can be stated.
func (e *MetricsEngine) CalcMarketCap(sharePrice, sharesOutstanding float64) *float64 {
	if sharePrice == 0 || sharesOutstanding == 0 {
		return nil
	}
	return helpers.FloatPtr(helpers.Round2(sharePrice * sharesOutstanding))
}

// ComputeGrowthRate annualizes the change from start to end over the
// given number of periods. Negative transitions have no defined rate.
func (e *MetricsEngine) ComputeGrowthRate(start, end float64, periods int) *float64 {
	if start <= 0 || periods <= 0 {
		return nil
	}
	ratio := end / start
	if ratio <= 0 {
		return nil
	}
	rate := (math.Pow(ratio, 1/float64(periods)) - 1) * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil
	}
	return helpers.FloatPtr(helpers.Round2(rate))
}

func coerceShares(value *float64, reason string) types.MetricValue {
	if value == nil {
		return helpers.MetricMissing("shares", reason)
	}
	return types.MetricValue{Value: value, Unit: "shares"}
}

func extractEquity(row map[string]types.MetricValue) types.MetricValue {
	for _, candidate := range constants.EquityRowKeys {
		if metric, ok := row[candidate]; ok {
			return metric
		}
	}
	var components []types.MetricValue
	for _, part := range []string{"equity_capital", "reserves"} {
		if metric, ok := row[part]; ok {
			components = append(components, metric)
		}
	}
	if len(components) > 0 {
		return sumMetrics(components, "INR", "Equity components mismatch")
	}
	return helpers.MetricMissing("INR", "Equity unavailable")
}

func statementScopeKey(statementID string) string {
	if statementID == "" {
		return ""
	}
	parts := strings.Split(statementID, "_")
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "_" + parts[1]
}

func (e *MetricsEngine) computeReturnOnEquity(netIncome, equityCurrent, equityPrevious types.MetricValue) types.MetricValue {
	const reason = "Insufficient equity history"
	if netIncome.Value == nil || equityCurrent.Value == nil || equityPrevious.Value == nil {
		return helpers.MetricMissing("%", reason)
	}

	scopes := map[string]struct{}{
		statementScopeKey(netIncome.StatementID):      {},
		statementScopeKey(equityCurrent.StatementID):  {},
		statementScopeKey(equityPrevious.StatementID): {},
	}
	if _, hasEmpty := scopes[""]; hasEmpty || len(scopes) != 1 {
		return helpers.MetricMissing("%", reason)
	}

	averageEquity := (*equityCurrent.Value + *equityPrevious.Value) / 2
	if averageEquity == 0 {
		return helpers.MetricMissing("%", reason)
	}

	return types.MetricValue{
		Value:       helpers.FloatPtr(helpers.Round2(*netIncome.Value / averageEquity * 100)),
		Unit:        "%",
		StatementID: netIncome.StatementID,
		Computed:    true,
	}
}

func presentNonZero(metric types.MetricValue) (float64, bool) {
	if metric.Value == nil || *metric.Value == 0 {
		return 0, false
	}
	return *metric.Value, true
}

// ComputeMetricValues runs the full metric suite over statement tables.
// Every key in the catalog appears in the result; the ones that could
// not be derived stay absent with a reason.
func (e *MetricsEngine) ComputeMetricValues(
	incomeStatement types.StatementTable,
	balanceSheet types.StatementTable,
	sharesOutstanding *float64,
	sharePrice *float64,
	metadata *types.ComputeMetadata,
) map[string]types.MetricValue {
	metrics := make(map[string]types.MetricValue, len(constants.MetricUnits))
	for key, unit := range constants.MetricUnits {
		metrics[key] = helpers.MetricMissing(unit, "Not computed")
	}

	if len(incomeStatement) == 0 {
		return metrics
	}

	orderedPeriods := make([]string, 0, len(incomeStatement))
	for period := range incomeStatement {
		orderedPeriods = append(orderedPeriods, period)
	}
	helpers.SortPeriodsByYear(orderedPeriods)

	latestPeriod := orderedPeriods[len(orderedPeriods)-1]
	latestRow := incomeStatement[latestPeriod]
	previousPeriod := ""
	if len(orderedPeriods) > 1 {
		previousPeriod = orderedPeriods[len(orderedPeriods)-2]
	}

	revenue := helpers.CoerceMetric(latestRow, "revenue", "INR", "Revenue unavailable")
	operatingProfit := helpers.CoerceMetric(latestRow, "operating_profit", "INR", "Operating profit unavailable")
	netIncome := helpers.CoerceMetric(latestRow, "net_income", "INR", "Net income unavailable")
	interest := helpers.CoerceMetric(latestRow, "interest", "INR", "Interest unavailable")
	profitBeforeTax := helpers.CoerceMetric(latestRow, "profit_before_tax", "INR", "Profit before tax unavailable")
	ebit := helpers.CoerceMetric(latestRow, "ebit", "INR", "EBIT unavailable")

	if ebit.Value == nil && profitBeforeTax.Value != nil && interest.Value != nil {
		ebit = sumMetrics([]types.MetricValue{profitBeforeTax, interest}, "INR", "EBIT components mismatch")
	}

	metrics["fundametrics_operating_margin"] = e.seedConfidence(
		e.CalcOperatingMargin(revenue, operatingProfit), metadata,
		[]types.MetricValue{revenue, operatingProfit}, nil)
	metrics["fundametrics_net_margin"] = e.seedConfidence(
		e.CalcNetMargin(revenue, netIncome), metadata,
		[]types.MetricValue{revenue, netIncome}, nil)
	metrics["fundametrics_interest_coverage"] = e.seedConfidence(
		e.CalcInterestCoverage(ebit, interest), metadata,
		[]types.MetricValue{ebit, interest}, nil)

	balanceRow, ok := balanceSheet[latestPeriod]
	if !ok && len(balanceSheet) > 0 {
		// fall back to the latest balance sheet on period mismatch
		bsPeriods := make([]string, 0, len(balanceSheet))
		for period := range balanceSheet {
			bsPeriods = append(bsPeriods, period)
		}
		helpers.SortPeriodsByYear(bsPeriods)
		balanceRow = balanceSheet[bsPeriods[len(bsPeriods)-1]]
	}

	totalAssets := helpers.CoerceMetric(balanceRow, "total_assets", "INR", "Total assets unavailable")
	metrics["fundametrics_asset_turnover"] = e.seedConfidence(
		e.CalcAssetTurnover(revenue, totalAssets), metadata,
		[]types.MetricValue{revenue, totalAssets}, nil)

	equityCurrent := extractEquity(balanceRow)
	var balancePrev map[string]types.MetricValue
	if previousPeriod != "" {
		balancePrev = balanceSheet[previousPeriod]
	}
	equityPrevious := extractEquity(balancePrev)

	metrics["fundametrics_return_on_equity"] = e.seedConfidence(
		e.computeReturnOnEquity(netIncome, equityCurrent, equityPrevious), metadata,
		[]types.MetricValue{netIncome, equityCurrent, equityPrevious}, nil)

	borrowings := helpers.CoerceMetric(balanceRow, "borrowings", "INR", "Borrowings unavailable")
	metrics["fundametrics_debt_to_equity"] = e.seedConfidence(
		e.CalcDebtToEquity(borrowings, equityCurrent), metadata,
		[]types.MetricValue{borrowings, equityCurrent}, nil)

	shares := coerceShares(sharesOutstanding, "Shares unavailable")
	metrics["fundametrics_eps"] = e.seedConfidence(
		e.CalcEPS(netIncome, shares), metadata,
		[]types.MetricValue{netIncome, shares}, nil)

	metrics["fundametrics_book_value_per_share"] = e.seedConfidence(
		e.CalcBookValuePerShare(equityCurrent, shares), metadata,
		[]types.MetricValue{equityCurrent, shares}, nil)

	bvps := metrics["fundametrics_book_value_per_share"]
	currEPS := metrics["fundametrics_eps"]

	if sharePrice != nil && *sharePrice != 0 {
		metrics["fundametrics_pe_ratio"] = e.seedConfidence(
			e.CalcPERatio(*sharePrice, currEPS), metadata,
			[]types.MetricValue{currEPS}, nil)
		metrics["fundametrics_price_to_book"] = e.seedConfidence(
			e.CalcPriceToBook(*sharePrice, bvps), metadata,
			[]types.MetricValue{bvps}, nil)
	}

	for _, horizon := range []int{10, 5, 3, 1} {
		if len(orderedPeriods) <= horizon {
			continue
		}
		startPeriod := orderedPeriods[len(orderedPeriods)-(horizon+1)]
		endPeriod := orderedPeriods[len(orderedPeriods)-1]

		if start, ok := presentNonZero(incomeStatement[startPeriod]["revenue"]); ok {
			if end, ok := presentNonZero(incomeStatement[endPeriod]["revenue"]); ok {
				if rate := e.ComputeGrowthRate(start, end, horizon); rate != nil {
					metrics[fmt.Sprintf("fundametrics_sales_growth_%dy", horizon)] = types.MetricValue{
						Value: rate, Unit: "%", Computed: true,
					}
				}
			}
		}

		if start, ok := presentNonZero(incomeStatement[startPeriod]["net_income"]); ok {
			if end, ok := presentNonZero(incomeStatement[endPeriod]["net_income"]); ok {
				if rate := e.ComputeGrowthRate(start, end, horizon); rate != nil {
					metrics[fmt.Sprintf("fundametrics_profit_growth_%dy", horizon)] = types.MetricValue{
						Value: rate, Unit: "%", Computed: true,
					}
				}
			}
		}
	}

	for _, horizon := range []int{10, 5, 3} {
		if len(orderedPeriods) < horizon {
			continue
		}
		relevant := orderedPeriods[len(orderedPeriods)-horizon:]
		var roeValues []float64
		for _, period := range relevant {
			netIncomeValue, ok := presentNonZero(incomeStatement[period]["net_income"])
			if !ok {
				continue
			}
			equity := extractEquity(balanceSheet[period])
			if equity.Value == nil || *equity.Value == 0 {
				continue
			}
			roeValues = append(roeValues, netIncomeValue / *equity.Value * 100)
		}
		if len(roeValues) > 0 {
			total := 0.0
			for _, value := range roeValues {
				total += value
			}
			metrics[fmt.Sprintf("fundametrics_roe_%dy", horizon)] = types.MetricValue{
				Value:    helpers.FloatPtr(helpers.Round2(total / float64(len(roeValues)))),
				Unit:     "%",
				Computed: true,
			}
		}
	}

	if len(orderedPeriods) > 1 {
		firstPeriod := orderedPeriods[0]
		lastPeriod := orderedPeriods[len(orderedPeriods)-1]
		if start, ok := presentNonZero(incomeStatement[firstPeriod]["net_income"]); ok {
			if end, ok := presentNonZero(incomeStatement[lastPeriod]["net_income"]); ok {
				if rate := e.ComputeGrowthRate(start, end, len(orderedPeriods)-1); rate != nil {
					metrics["fundametrics_growth_rate_internal"] = types.MetricValue{
						Value: rate, Unit: "%", Computed: true,
					}
				}
			}
		}
	}

	for key, metric := range metrics {
		if metric.Confidence == nil {
			metrics[key] = e.seedConfidence(metric, metadata, nil, nil)
		}
	}

	return metrics
}

// ComputeMetrics runs ComputeMetricValues and keeps only the bare values.
func (e *MetricsEngine) ComputeMetrics(
	incomeStatement types.StatementTable,
	balanceSheet types.StatementTable,
	sharesOutstanding *float64,
	sharePrice *float64,
) map[string]*float64 {
	values := e.ComputeMetricValues(incomeStatement, balanceSheet, sharesOutstanding, sharePrice, nil)
	result := make(map[string]*float64, len(values))
	for key, metric := range values {
		result[key] = metric.Value
	}
	return result
}

// HistoryAnalysis holds per-period metrics plus whole-history growth.
type HistoryAnalysis struct {
	AnnualMetrics map[string]map[string]types.MetricValue `json:"annual_metrics"`
	GrowthMetrics map[string]*float64                     `json:"growth_metrics,omitempty"`
}

// AnalyzeCompanyHistory walks a year-keyed income table to produce the
// per-period margin trail and full-history growth rates.
func (e *MetricsEngine) AnalyzeCompanyHistory(incomeStatement types.StatementTable) HistoryAnalysis {
	analysis := HistoryAnalysis{AnnualMetrics: map[string]map[string]types.MetricValue{}}
	if len(incomeStatement) == 0 {
		return analysis
	}

	orderedPeriods := make([]string, 0, len(incomeStatement))
	for period := range incomeStatement {
		orderedPeriods = append(orderedPeriods, period)
	}
	helpers.SortPeriodsByYear(orderedPeriods)

	for _, period := range orderedPeriods {
		row := incomeStatement[period]
		revenue := helpers.CoerceMetric(row, "revenue", "INR", "Revenue unavailable")
		operatingProfit := helpers.CoerceMetric(row, "operating_profit", "INR", "Operating profit unavailable")
		analysis.AnnualMetrics[period] = map[string]types.MetricValue{
			"fundametrics_operating_margin": e.CalcOperatingMargin(revenue, operatingProfit),
		}
	}

	if len(orderedPeriods) > 1 {
		first := incomeStatement[orderedPeriods[0]]
		last := incomeStatement[orderedPeriods[len(orderedPeriods)-1]]
		periods := len(orderedPeriods) - 1
		growth := map[string]*float64{}
		if start, ok := presentNonZero(first["revenue"]); ok {
			if end, ok := presentNonZero(last["revenue"]); ok {
				growth["fundametrics_revenue_growth_annualized"] = e.ComputeGrowthRate(start, end, periods)
			}
		}
		if start, ok := presentNonZero(first["net_income"]); ok {
			if end, ok := presentNonZero(last["net_income"]); ok {
				growth["fundametrics_growth_rate_internal"] = e.ComputeGrowthRate(start, end, periods)
			}
		}
		analysis.GrowthMetrics = growth
	}

	return analysis
}
