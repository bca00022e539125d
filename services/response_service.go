package services

import (
	"fmt"
	"strings"
	"time"

	"fundametrics/types"
	"fundametrics/utils/helpers"

	"go.uber.org/zap"
)

// FundametricsDisclaimer ships with every response.
var FundametricsDisclaimer = map[string]string{
	"data_nature":       "Raw financial statement figures sourced from publicly available disclosures",
	"metrics_notice":    "All ratios and metrics are computed internally by Fundametrics",
	"investment_notice": "This information is for educational purposes only and is not investment advice",
	"liability":         "Fundametrics does not guarantee accuracy or completeness",
}

// MetricPayload is the wire shape of one emitted metric.
type MetricPayload struct {
	Value       *float64               `json:"value"`
	Unit        string                 `json:"unit"`
	Computed    bool                   `json:"computed"`
	Confidence  *types.ConfidenceScore `json:"confidence,omitempty"`
	StatementID string                 `json:"statement_id,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
}

// EmitMetric flattens a metric for the API. Present values always carry
// a confidence block; absent ones always carry a reason.
func EmitMetric(metric *types.MetricValue, defaultUnit, fallbackReason string) MetricPayload {
	if metric == nil {
		return MetricPayload{Unit: defaultUnit, Reason: fallbackReason}
	}

	payload := MetricPayload{
		Value:       metric.Value,
		Unit:        metric.Unit,
		Computed:    metric.Computed,
		StatementID: metric.StatementID,
	}
	if payload.Unit == "" {
		payload.Unit = defaultUnit
	}
	if metric.Value != nil {
		if metric.Confidence != nil {
			payload.Confidence = metric.Confidence
		} else {
			payload.Confidence = &types.ConfidenceScore{Score: 0, Grade: "none"}
		}
		payload.Reason = metric.Reason
	} else {
		payload.Reason = metric.Reason
		if payload.Reason == "" {
			payload.Reason = fallbackReason
		}
	}
	return payload
}

func emitTable(table types.StatementTable) map[string]map[string]MetricPayload {
	out := make(map[string]map[string]MetricPayload, len(table))
	for period, row := range table {
		emitted := make(map[string]MetricPayload, len(row))
		for key, metric := range row {
			m := metric
			emitted[key] = EmitMetric(&m, "", "Unavailable")
		}
		out[period] = emitted
	}
	return out
}

// ResponseBuilder assembles the company API payload out of canonical
// tables, the two engines and snapshot metadata.
type ResponseBuilder struct {
	Symbol      string
	CompanyName string
	Sector      string
	About       string

	Income      types.StatementTable
	Balance     types.StatementTable
	Cashflow    types.StatementTable
	RatiosTable types.StatementTable
	Metadata    types.ComputeMetadata

	QuarterlyPeriods []string

	Now func() time.Time

	metricsEngine *MetricsEngine
	ratiosEngine  *RatiosEngine
	dataSources   []string
	warnings      []string
}

func NewResponseBuilder(symbol, companyName, sector string) *ResponseBuilder {
	now := func() time.Time { return time.Now().UTC() }
	return &ResponseBuilder{
		Symbol:        symbol,
		CompanyName:   companyName,
		Sector:        sector,
		Now:           now,
		metricsEngine: &MetricsEngine{Now: now},
		ratiosEngine:  &RatiosEngine{Now: now},
	}
}

func (b *ResponseBuilder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now().UTC()
}

func (b *ResponseBuilder) engines() (*MetricsEngine, *RatiosEngine) {
	if b.metricsEngine == nil {
		b.metricsEngine = &MetricsEngine{Now: b.now}
	}
	if b.ratiosEngine == nil {
		b.ratiosEngine = &RatiosEngine{Now: b.now}
	}
	return b.metricsEngine, b.ratiosEngine
}

func (b *ResponseBuilder) AddWarning(message string) {
	b.warnings = append(b.warnings, message)
}

func (b *ResponseBuilder) addSource(name string) {
	for _, existing := range b.dataSources {
		if existing == name {
			return
		}
	}
	b.dataSources = append(b.dataSources, name)
}

func (b *ResponseBuilder) detectPeriodicity(period string) string {
	if period == "" {
		return ""
	}
	for _, quarterly := range b.QuarterlyPeriods {
		if quarterly == period {
			return "quarterly"
		}
	}
	return "annual"
}

// resolveShares picks shares outstanding from metadata, falling back to
// equity capital over face value off the latest balance sheet.
func (b *ResponseBuilder) resolveShares() *float64 {
	if b.Metadata.SharesOutstanding != nil {
		return b.Metadata.SharesOutstanding
	}
	if b.Metadata.Constants.SharesOutstanding != nil {
		return b.Metadata.Constants.SharesOutstanding
	}

	faceValue := b.Metadata.Constants.FaceValue
	if faceValue == nil || *faceValue == 0 || len(b.Balance) == 0 {
		return nil
	}
	periods := make([]string, 0, len(b.Balance))
	for period := range b.Balance {
		periods = append(periods, period)
	}
	helpers.SortPeriodsByYear(periods)
	latest := b.Balance[periods[len(periods)-1]]
	if equityCapital, ok := latest["equity_capital"]; ok && equityCapital.Value != nil {
		return helpers.FloatPtr(*equityCapital.Value / *faceValue)
	}
	return nil
}

// promoteFaceValue copies the newest scraped face value into the
// constants block when metadata never carried one.
func (b *ResponseBuilder) promoteFaceValue(orderedPeriods []string) {
	if b.Metadata.Constants.FaceValue != nil && *b.Metadata.Constants.FaceValue != 0 {
		return
	}
	for i := len(orderedPeriods) - 1; i >= 0; i-- {
		if row, ok := b.RatiosTable[orderedPeriods[i]]; ok {
			if fv, ok := row["face_value"]; ok && fv.Value != nil {
				b.Metadata.Constants.FaceValue = fv.Value
				return
			}
		}
	}
}

type metricsBundle struct {
	Metrics     map[string]types.MetricValue
	Ratios      map[string]types.MetricValue
	Period      string
	Periodicity string
	LatestRow   map[string]types.MetricValue
}

func (b *ResponseBuilder) safeMetricValues(shares, price *float64) (result map[string]types.MetricValue) {
	defer func() {
		if r := recover(); r != nil {
			b.AddWarning(fmt.Sprintf("Internal metrics engine error: %v", r))
			zap.L().Error("metrics engine panicked", zap.Any("panic", r), zap.String("symbol", b.Symbol))
			result = map[string]types.MetricValue{}
		}
	}()
	engine, _ := b.engines()
	return engine.ComputeMetricValues(b.Income, b.Balance, shares, price, &b.Metadata)
}

func (b *ResponseBuilder) safeRatios() (result map[string]types.MetricValue) {
	defer func() {
		if r := recover(); r != nil {
			b.AddWarning(fmt.Sprintf("Error computing ratios: %v", r))
			zap.L().Error("ratios engine panicked", zap.Any("panic", r), zap.String("symbol", b.Symbol))
			result = map[string]types.MetricValue{}
		}
	}()
	_, engine := b.engines()
	return engine.Compute(b.Income, b.Balance, &b.Metadata)
}

func (b *ResponseBuilder) computeMetrics() metricsBundle {
	bundle := metricsBundle{
		Metrics:   map[string]types.MetricValue{},
		Ratios:    map[string]types.MetricValue{},
		LatestRow: map[string]types.MetricValue{},
	}

	if len(b.Income) > 0 {
		b.addSource("income_statement")
	}
	if len(b.Balance) > 0 {
		b.addSource("balance_sheet")
	}
	if len(b.Income) == 0 {
		return bundle
	}

	orderedPeriods := make([]string, 0, len(b.Income))
	for period := range b.Income {
		orderedPeriods = append(orderedPeriods, period)
	}
	helpers.SortPeriodsByYear(orderedPeriods)

	latestPeriod := orderedPeriods[len(orderedPeriods)-1]
	bundle.Period = latestPeriod
	bundle.Periodicity = b.detectPeriodicity(latestPeriod)
	bundle.LatestRow = b.Income[latestPeriod]

	b.promoteFaceValue(orderedPeriods)
	shares := b.resolveShares()

	price := b.Metadata.SharePrice
	if price == nil {
		price = b.Metadata.Constants.SharePrice
	}

	bundle.Metrics = b.safeMetricValues(shares, price)
	b.backfillMarketCap(bundle.Metrics, shares, price)
	b.backfillFromScrapedRatios(bundle.Metrics)
	b.backfillFromConstants(bundle.Metrics)
	bundle.Ratios = b.safeRatios()

	return bundle
}

func (b *ResponseBuilder) backfillMarketCap(metrics map[string]types.MetricValue, shares, price *float64) {
	if existing := b.Metadata.Constants.MarketCap; existing != nil {
		metrics["fundametrics_market_cap"] = types.MetricValue{
			Value: existing,
			Unit:  "Cr",
		}
		return
	}
	if price == nil || *price == 0 || shares == nil || *shares == 0 {
		return
	}
	value := helpers.Round2(*price * *shares)
	b.Metadata.Constants.MarketCap = helpers.FloatPtr(value)
	metrics["fundametrics_market_cap"] = types.MetricValue{
		Value:    helpers.FloatPtr(value),
		Unit:     "Cr",
		Computed: true,
		Reason:   "Derived from Price * Shares (in Cr)",
	}
}

// backfillFromScrapedRatios fills metrics the engines could not derive
// with the newest scraped ratio row, marked as uncomputed provenance.
func (b *ResponseBuilder) backfillFromScrapedRatios(metrics map[string]types.MetricValue) {
	if len(b.RatiosTable) == 0 {
		return
	}
	periods := make([]string, 0, len(b.RatiosTable))
	for period := range b.RatiosTable {
		periods = append(periods, period)
	}
	helpers.SortPeriodsByYear(periods)
	latestPeriod := periods[len(periods)-1]
	scrapedRow := b.RatiosTable[latestPeriod]

	backfillMap := map[string]string{
		"fundametrics_pe_ratio":                   "price_to_earnings",
		"fundametrics_return_on_equity":           "return_on_equity",
		"fundametrics_return_on_capital_employed": "return_on_capital_employed",
		"fundametrics_dividend_yield":             "dividend_yield",
		"fundametrics_book_value_per_share":       "book_value_per_share",
		"fundametrics_debt_to_equity":             "debt_to_equity",
	}
	for metricKey, scrapedKey := range backfillMap {
		if current, ok := metrics[metricKey]; ok && current.Value != nil {
			continue
		}
		scraped, ok := scrapedRow[scrapedKey]
		if !ok || scraped.Value == nil {
			continue
		}
		unit := "%"
		if containsAny(metricKey, "ratio", "pe", "debt") {
			unit = "x"
		}
		metrics[metricKey] = types.MetricValue{
			Value:  scraped.Value,
			Unit:   unit,
			Reason: fmt.Sprintf("Backfilled from %s scraped table", latestPeriod),
		}
	}
}

func (b *ResponseBuilder) backfillFromConstants(metrics map[string]types.MetricValue) {
	constants := b.Metadata.Constants
	backfill := map[string]*float64{
		"fundametrics_pe_ratio":                   constants.PERatio,
		"fundametrics_return_on_equity":           constants.ROE,
		"fundametrics_return_on_capital_employed": constants.ROCE,
		"fundametrics_dividend_yield":             constants.DividendYield,
		"fundametrics_book_value_per_share":       constants.BookValue,
		"fundametrics_market_cap":                 constants.MarketCap,
		"fundametrics_debt_to_equity":             constants.DebtToEquity,
	}
	for metricKey, value := range backfill {
		if value == nil {
			continue
		}
		if current, ok := metrics[metricKey]; ok && current.Value != nil {
			continue
		}
		unit := "%"
		switch {
		case containsAny(metricKey, "market_cap"):
			unit = "Cr"
		case containsAny(metricKey, "pe", "debt"):
			unit = "x"
		case containsAny(metricKey, "book"):
			unit = "INR"
		}
		metrics[metricKey] = types.MetricValue{
			Value:  value,
			Unit:   unit,
			Reason: "Backfilled from source snapshot constants",
		}
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ResolveIntegrity grades a result set: verified only when every emitted
// entry carries a value with at least medium confidence.
func ResolveIntegrity(outputs ...map[string]MetricPayload) string {
	total := 0
	for _, output := range outputs {
		for _, entry := range output {
			total++
			if entry.Value == nil {
				return "partial"
			}
			if entry.Confidence == nil || entry.Confidence.Score < 60 {
				return "partial"
			}
		}
	}
	if total == 0 {
		return "partial"
	}
	return "verified"
}

type dataFreshness struct {
	AsOfDate        string `json:"as_of_date"`
	DaysSinceUpdate int    `json:"days_since_update"`
	Status          string `json:"freshness_status"`
}

func (b *ResponseBuilder) calculateFreshness() dataFreshness {
	now := b.now()
	days := 1
	if b.Metadata.Generated != nil {
		days = int(now.Sub(*b.Metadata.Generated).Hours() / 24)
		if days < 0 {
			days = 0
		}
	}
	status := "outdated"
	switch {
	case days <= 1:
		status = "fresh"
	case days <= 5:
		status = "stale"
	}
	return dataFreshness{
		AsOfDate:        now.Format("2006-01-02"),
		DaysSinceUpdate: days,
		Status:          status,
	}
}

func firstPresent(candidates ...*types.MetricValue) *types.MetricValue {
	for _, candidate := range candidates {
		if candidate != nil && candidate.Value != nil {
			return candidate
		}
	}
	return nil
}

func lookupMetric(m map[string]types.MetricValue, key string) *types.MetricValue {
	if metric, ok := m[key]; ok {
		return &metric
	}
	return nil
}

// Signal is a rule-based flag derived from the computed metrics.
type Signal struct {
	Label       string `json:"label"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

func (b *ResponseBuilder) generateSignals(metrics, ratios map[string]types.MetricValue) []Signal {
	signals := []Signal{}

	if pe := firstPresent(lookupMetric(ratios, "price_to_earnings"), lookupMetric(metrics, "fundametrics_pe_ratio")); pe != nil {
		if *pe.Value > 50 {
			signals = append(signals, Signal{
				Label: "High Valuation", Severity: "warning",
				Description: fmt.Sprintf("Stock is trading at a high P/E ratio of %.1fx.", *pe.Value),
			})
		} else if *pe.Value < 15 {
			signals = append(signals, Signal{
				Label: "Attractive Valuation", Severity: "success",
				Description: fmt.Sprintf("Stock is trading at a low P/E ratio of %.1fx.", *pe.Value),
			})
		}
	}

	if de := firstPresent(lookupMetric(ratios, "debt_to_equity"), lookupMetric(metrics, "fundametrics_debt_to_equity")); de != nil {
		if *de.Value > 1.5 {
			signals = append(signals, Signal{
				Label: "High Leverage", Severity: "danger",
				Description: fmt.Sprintf("Debt-to-Equity ratio of %.1f is above healthy levels.", *de.Value),
			})
		} else if *de.Value < 0.5 {
			signals = append(signals, Signal{
				Label: "Low Debt", Severity: "success",
				Description: fmt.Sprintf("Company maintains a conservative debt profile (%.1fx).", *de.Value),
			})
		}
	}

	if roe := firstPresent(lookupMetric(ratios, "return_on_equity"), lookupMetric(metrics, "fundametrics_return_on_equity")); roe != nil {
		if *roe.Value > 20 {
			signals = append(signals, Signal{
				Label: "Strong ROE", Severity: "success",
				Description: fmt.Sprintf("Efficient capital usage with %.1f%% Return on Equity.", *roe.Value),
			})
		} else if *roe.Value < 8 {
			signals = append(signals, Signal{
				Label: "Weak ROE", Severity: "warning",
				Description: fmt.Sprintf("Sub-par capital efficiency with %.1f%% Return on Equity.", *roe.Value),
			})
		}
	}

	return signals
}

func (b *ResponseBuilder) generateSummary(metrics, ratios map[string]types.MetricValue) map[string]interface{} {
	var paragraphs []string

	p0 := fmt.Sprintf("%s is currently analyzed with a focus on its financial metrics. ", b.CompanyName)
	if pe := firstPresent(lookupMetric(ratios, "price_to_earnings"), lookupMetric(metrics, "fundametrics_pe_ratio")); pe != nil {
		p0 += fmt.Sprintf("The stock is trading at a price-to-earnings multiple of %.1fx. ", *pe.Value)
	} else {
		p0 += "Valuation multiples are currently being computed based on latest price data. "
	}
	paragraphs = append(paragraphs, p0)

	p1 := ""
	if roe := firstPresent(lookupMetric(ratios, "return_on_equity"), lookupMetric(metrics, "fundametrics_return_on_equity")); roe != nil {
		status := "improving"
		if *roe.Value > 15 {
			status = "efficient"
		} else if *roe.Value > 8 {
			status = "stable"
		}
		p1 += fmt.Sprintf("Return on Equity stands at %.1f%%, reflecting a %s capital allocation strategy. ", *roe.Value, status)
	}
	if margin := firstPresent(lookupMetric(ratios, "operating_margin"), lookupMetric(metrics, "fundametrics_operating_margin")); margin != nil {
		p1 += fmt.Sprintf("The operating margin of %.1f%% indicates the core profitability of the business.", *margin.Value)
	}
	if p1 != "" {
		paragraphs = append(paragraphs, p1)
	}

	paragraphs = append(paragraphs, "Investors should monitor historical growth trends and sector benchmarks for a full context.")

	mode := "historical-only"
	if narrative := GenerateCompanySummary(b.CompanyName, metrics, ratios); narrative != "" {
		paragraphs = append([]string{narrative}, paragraphs...)
		mode = "gemini-assisted"
	}

	return map[string]interface{}{
		"paragraphs": paragraphs,
		"generated":  true,
		"updated_at": b.now().Format(time.RFC3339),
		"mode":       mode,
	}
}

// Build assembles the complete company payload. Engine failures degrade
// to warnings with partial output instead of failing the whole response.
func (b *ResponseBuilder) Build() map[string]interface{} {
	freshness := b.calculateFreshness()
	bundle := b.computeMetrics()

	metricsOutput := make(map[string]MetricPayload, len(bundle.Metrics))
	for key, metric := range bundle.Metrics {
		m := metric
		metricsOutput[key] = EmitMetric(&m, "", "Unavailable")
	}
	ratiosOutput := make(map[string]MetricPayload, len(bundle.Ratios))
	for key, ratio := range bundle.Ratios {
		r := ratio
		ratiosOutput[key] = EmitMetric(&r, "", "Unavailable")
	}

	integrity := ResolveIntegrity(metricsOutput, ratiosOutput)

	latestFinancials := map[string]interface{}{}
	for key, metric := range bundle.LatestRow {
		m := metric
		latestFinancials[key] = EmitMetric(&m, "", "Unavailable")
	}
	if bundle.Period != "" {
		latestFinancials["period"] = bundle.Period
		latestFinancials["periodicity"] = bundle.Periodicity
	}

	metadataBlock := map[string]interface{}{
		"data_freshness":          freshness.Status,
		"as_of_date":              freshness.AsOfDate,
		"data_sources":            b.dataSources,
		"computed_by":             "fundametrics-metrics-engine",
		"metrics_origin":          "fundametrics_internal",
		"version":                 "1.0.0",
		"fundametrics_disclaimer": FundametricsDisclaimer,
		"metrics_context": map[string]interface{}{
			"period":      bundle.Period,
			"periodicity": bundle.Periodicity,
			"engine":      "MetricsEngine",
		},
		"quarterly_data": map[string]interface{}{
			"available":         len(b.QuarterlyPeriods) > 0,
			"periods_available": len(b.QuarterlyPeriods),
		},
	}
	if len(b.QuarterlyPeriods) > 0 {
		metadataBlock["quarterly_data"].(map[string]interface{})["latest_period"] = b.QuarterlyPeriods[len(b.QuarterlyPeriods)-1]
	}
	if len(b.warnings) > 0 {
		metadataBlock["warnings"] = b.warnings
	}

	return map[string]interface{}{
		"symbol": b.Symbol,
		"company": map[string]interface{}{
			"name":   b.CompanyName,
			"sector": b.Sector,
			"about":  b.About,
		},
		"financials": map[string]interface{}{
			"latest":           latestFinancials,
			"metrics":          metricsOutput,
			"ratios":           ratiosOutput,
			"income_statement": emitTable(b.Income),
			"balance_sheet":    emitTable(b.Balance),
			"cash_flow":        emitTable(b.Cashflow),
			"ratios_table":     emitTable(b.RatiosTable),
		},
		"ai_summary": b.generateSummary(bundle.Metrics, bundle.Ratios),
		"signals":    b.generateSignals(bundle.Metrics, bundle.Ratios),
		"metadata":   metadataBlock,
		"metrics": map[string]interface{}{
			"integrity": integrity,
			"values":    metricsOutput,
			"ratios":    ratiosOutput,
		},
	}
}
