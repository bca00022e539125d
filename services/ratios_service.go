package services

import (
	"sort"
	"time"

	"fundametrics/types"
	"fundametrics/utils/constants"
	"fundametrics/utils/helpers"
)

// RatiosEngine derives the downstream ratio set. It runs independently
// of the metrics engine so one bad table cannot poison both outputs.
type RatiosEngine struct {
	Now func() time.Time
}

func NewRatiosEngine() *RatiosEngine {
	return &RatiosEngine{Now: func() time.Time { return time.Now().UTC() }}
}

func (e *RatiosEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func sourceFromMetrics(metrics []types.MetricValue) string {
	for _, metric := range metrics {
		if sourceFromStatementID(metric.StatementID, true) == "exchange" {
			return "exchange"
		}
	}
	return "derived"
}

func completenessRatio(metrics []types.MetricValue) *float64 {
	if len(metrics) == 0 {
		return nil
	}
	present := 0
	for _, metric := range metrics {
		if metric.Value != nil {
			present++
		}
	}
	return helpers.FloatPtr(float64(present) / float64(len(metrics)))
}

func (e *RatiosEngine) seedConfidence(metric types.MetricValue, inputs []types.MetricValue, metadata *types.ComputeMetadata, stability *int) types.MetricValue {
	all := make([]types.MetricValue, 0, len(inputs)+1)
	all = append(all, inputs...)
	all = append(all, metric)

	source := sourceFromMetrics(all)
	ctx := &types.ConfidenceContext{
		SourceType:        &source,
		CompletenessRatio: completenessRatio(inputs),
		Stability:         stability,
	}
	if metadata != nil {
		ctx.GeneratedAt = metadata.Generated
		ctx.TTLHours = metadata.TTLHours
	}

	ids := map[string]struct{}{}
	for _, item := range all {
		if item.StatementID != "" {
			ids[item.StatementID] = struct{}{}
		}
	}
	switch {
	case len(ids) == 0:
		ctx.StatementStatus = "partial"
	case len(ids) == 1:
		ctx.StatementStatus = "matched"
	default:
		ctx.StatementStatus = "inconsistent"
	}

	metric.ConfidenceInputs = ctx
	metric.Confidence = ComputeConfidence(metric, nil, e.now())
	return metric
}

// capConfidenceDownstream clamps a derived metric's score to the weakest
// input so derivation never launders a low-confidence figure upward.
func capConfidenceDownstream(metric types.MetricValue, inputs []types.MetricValue) types.MetricValue {
	if metric.Confidence == nil {
		return metric
	}
	minScore := metric.Confidence.Score
	for _, input := range inputs {
		if input.Confidence != nil && input.Confidence.Score < minScore {
			minScore = input.Confidence.Score
		}
	}
	metric.Confidence = CapConfidence(metric.Confidence, minScore)
	return metric
}

func (e *RatiosEngine) deriveRatio(numerator, denominator types.MetricValue, unit, reason string) types.MetricValue {
	if err := ValidateSameStatement(numerator, denominator); err != nil {
		return helpers.MetricMissing(unit, reason)
	}
	if numerator.Value == nil || denominator.Value == nil || *denominator.Value == 0 {
		return helpers.MetricMissing(unit, reason)
	}
	value := *numerator.Value / *denominator.Value
	if unit == "%" {
		value = helpers.Round2(value * 100)
	} else {
		value = helpers.Round4(value)
	}
	return types.MetricValue{
		Value:       helpers.FloatPtr(value),
		Unit:        unit,
		StatementID: numerator.StatementID,
		Computed:    true,
	}
}

func latestBalanceRow(balanceSheet types.StatementTable, period string) map[string]types.MetricValue {
	if len(balanceSheet) == 0 {
		return nil
	}
	if row, ok := balanceSheet[period]; ok && len(row) > 0 {
		return row
	}
	// period missing from the balance sheet: use the latest available
	periods := make([]string, 0, len(balanceSheet))
	for p := range balanceSheet {
		periods = append(periods, p)
	}
	helpers.SortPeriodsByYear(periods)
	return balanceSheet[periods[len(periods)-1]]
}

func (e *RatiosEngine) resolveEquity(balanceSheet types.StatementTable, period string) types.MetricValue {
	row := latestBalanceRow(balanceSheet, period)
	if row == nil {
		return helpers.MetricMissing("INR", "Equity unavailable")
	}
	for _, key := range constants.EquityRowKeys {
		if metric, ok := row[key]; ok {
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

func (e *RatiosEngine) resolveTotalDebt(balanceSheet types.StatementTable, period string) types.MetricValue {
	row := latestBalanceRow(balanceSheet, period)
	if row == nil {
		return helpers.MetricMissing("INR", "Total debt unavailable")
	}
	for _, key := range constants.DebtRowKeys {
		if metric, ok := row[key]; ok {
			return metric
		}
	}
	return helpers.MetricMissing("INR", "Total debt unavailable")
}

func (e *RatiosEngine) resolveCapitalEmployed(balanceSheet types.StatementTable, period string, equity types.MetricValue) types.MetricValue {
	if len(balanceSheet) == 0 {
		return helpers.MetricMissing("INR", "Capital employed unavailable")
	}
	row := balanceSheet[period]
	if direct, ok := row["capital_employed"]; ok {
		return direct
	}

	assets, hasAssets := row["total_assets"]
	if !hasAssets {
		assets = helpers.MetricMissing("INR", "Total assets unavailable")
	}

	totalDebt := e.resolveTotalDebt(balanceSheet, period)
	if equity.Value != nil && totalDebt.Value != nil {
		return sumMetrics([]types.MetricValue{equity, totalDebt}, "INR", "Capital employed mismatch")
	}
	if assets.Value != nil && totalDebt.Value != nil {
		return sumMetrics([]types.MetricValue{assets, totalDebt}, "INR", "Capital employed mismatch")
	}
	return helpers.MetricMissing("INR", "Capital employed unavailable")
}

func (e *RatiosEngine) resolveSharesOutstanding(balanceSheet types.StatementTable, metadata *types.ComputeMetadata) types.MetricValue {
	if metadata != nil {
		if metadata.SharesOutstanding != nil {
			return types.MetricValue{Value: metadata.SharesOutstanding, Unit: "shares"}
		}
		if metadata.Constants.SharesOutstanding != nil {
			return types.MetricValue{Value: metadata.Constants.SharesOutstanding, Unit: "shares"}
		}
	}

	if len(balanceSheet) == 0 {
		return helpers.MetricMissing("shares", "Shares outstanding unavailable")
	}

	periods := make([]string, 0, len(balanceSheet))
	for period := range balanceSheet {
		periods = append(periods, period)
	}
	sort.Strings(periods)
	latest := balanceSheet[periods[len(periods)-1]]

	equityCapital, hasCapital := latest["equity_capital"]
	var faceValue *float64
	if metadata != nil {
		faceValue = metadata.Constants.FaceValue
	}
	if hasCapital && equityCapital.Value != nil && faceValue != nil && *faceValue != 0 {
		return types.MetricValue{
			Value:    helpers.FloatPtr(*equityCapital.Value / *faceValue),
			Unit:     "shares",
			Computed: true,
		}
	}
	return helpers.MetricMissing("shares", "Shares outstanding unavailable")
}

func (e *RatiosEngine) resolveSharePrice(metadata *types.ComputeMetadata) types.MetricValue {
	if metadata == nil {
		return helpers.MetricMissing("INR", "Share price unavailable")
	}
	if metadata.SharePrice != nil {
		return types.MetricValue{Value: metadata.SharePrice, Unit: "INR"}
	}
	if metadata.Constants.SharePrice != nil {
		return types.MetricValue{Value: metadata.Constants.SharePrice, Unit: "INR"}
	}
	return helpers.MetricMissing("INR", "Share price unavailable")
}

func (e *RatiosEngine) computeROE(netIncome, equityCurrent, equityPrevious types.MetricValue) types.MetricValue {
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
		Value:       helpers.FloatPtr(helpers.Round4(*netIncome.Value / averageEquity * 100)),
		Unit:        "%",
		StatementID: netIncome.StatementID,
		Computed:    true,
	}
}

// Compute derives the ratio catalog from statement tables. An empty
// income statement produces an empty result rather than a partial one.
func (e *RatiosEngine) Compute(
	incomeStatement types.StatementTable,
	balanceSheet types.StatementTable,
	metadata *types.ComputeMetadata,
) map[string]types.MetricValue {
	ratios := map[string]types.MetricValue{}
	if len(incomeStatement) == 0 {
		return ratios
	}

	periods := make([]string, 0, len(incomeStatement))
	for period := range incomeStatement {
		periods = append(periods, period)
	}
	sort.Strings(periods)

	latestPeriod := periods[len(periods)-1]
	latestRow := incomeStatement[latestPeriod]
	priorPeriod := ""
	if len(periods) > 1 {
		priorPeriod = periods[len(periods)-2]
	}

	revenue := helpers.CoerceMetric(latestRow, "revenue", "INR", "Revenue unavailable")
	operatingProfit := helpers.CoerceMetric(latestRow, "operating_profit", "INR", "Operating profit unavailable")
	netIncome := helpers.CoerceMetric(latestRow, "net_income", "INR", "Net income unavailable")
	interest := helpers.CoerceMetric(latestRow, "interest", "INR", "Interest unavailable")
	profitBeforeTax := helpers.CoerceMetric(latestRow, "profit_before_tax", "INR", "Profit before tax unavailable")
	ebit := helpers.CoerceMetric(latestRow, "ebit", "INR", "EBIT unavailable")

	// operating profit stands in for EBIT before falling back to PBT+interest
	if ebit.Value == nil && operatingProfit.Value != nil {
		ebit = operatingProfit
	} else if ebit.Value == nil && profitBeforeTax.Value != nil && interest.Value != nil {
		ebit = sumMetrics([]types.MetricValue{profitBeforeTax, interest}, "INR", "EBIT components mismatch")
	}

	equityCurrent := e.resolveEquity(balanceSheet, latestPeriod)
	equityPrevious := e.resolveEquity(balanceSheet, priorPeriod)
	capitalEmployed := e.resolveCapitalEmployed(balanceSheet, latestPeriod, equityCurrent)
	sharesOutstanding := e.resolveSharesOutstanding(balanceSheet, metadata)
	sharePrice := e.resolveSharePrice(metadata)
	totalDebt := e.resolveTotalDebt(balanceSheet, latestPeriod)

	buildRatio := func(key string, numerator, denominator types.MetricValue, unit, reason string, extraInputs ...types.MetricValue) types.MetricValue {
		inputs := append([]types.MetricValue{numerator, denominator}, extraInputs...)
		base := e.deriveRatio(numerator, denominator, unit, reason)
		seeded := e.seedConfidence(base, inputs, metadata, nil)
		capped := capConfidenceDownstream(seeded, inputs)
		ratios[key] = capped
		return capped
	}

	buildRatio("operating_margin", operatingProfit, revenue, "%", "Operating margin unavailable")
	buildRatio("net_profit_margin", netIncome, revenue, "%", "Net margin unavailable")

	roeInputs := []types.MetricValue{netIncome, equityCurrent, equityPrevious}
	ratios["return_on_equity"] = capConfidenceDownstream(
		e.seedConfidence(e.computeROE(netIncome, equityCurrent, equityPrevious), roeInputs, metadata, nil),
		roeInputs,
	)

	buildRatio("return_on_capital_employed", ebit, capitalEmployed, "%", "ROCE unavailable")

	epsMetric := buildRatio("earnings_per_share", netIncome, sharesOutstanding, "INR", "EPS unavailable")

	sharePrice = e.seedConfidence(sharePrice, nil, metadata, nil)

	buildRatio("price_to_earnings", sharePrice, epsMetric, "x", "P/E unavailable")

	bookValueMetric := buildRatio("book_value_per_share", equityCurrent, sharesOutstanding, "INR", "Book value per share unavailable")

	buildRatio("price_to_book", sharePrice, bookValueMetric, "x", "P/B unavailable", equityCurrent, sharesOutstanding)

	buildRatio("debt_to_equity", totalDebt, equityCurrent, "x", "Debt to equity unavailable")

	buildRatio("interest_coverage", ebit, interest, "x", "Interest coverage unavailable")

	return ratios
}
