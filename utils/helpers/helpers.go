package helpers

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"fundametrics/types"

	"go.uber.org/zap"
)

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// ParseNumeric converts a scraped cell like "1,234.50" or "12.5%" into a
// float. Percent cells come back as their decimal fraction. A nil result
// means the cell carried no usable number.
func ParseNumeric(raw string) *float64 {
	cleanStr := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	cleanStr = strings.ReplaceAll(cleanStr, "₹", "")
	cleanStr = strings.ReplaceAll(cleanStr, "Cr.", "")
	if cleanStr == "" || cleanStr == "-" {
		return nil
	}

	if strings.Contains(cleanStr, "%") {
		cleanStr = strings.ReplaceAll(cleanStr, "%", "")
		f, err := strconv.ParseFloat(cleanStr, 64)
		if err != nil {
			zap.L().Error("Error converting percentage to float64", zap.Error(err))
			return nil
		}
		return FloatPtr(f / 100.0)
	}

	f, err := strconv.ParseFloat(cleanStr, 64)
	if err != nil {
		return nil
	}
	return FloatPtr(f)
}

// MetricMissing builds an absent metric carrying the reason it is absent.
func MetricMissing(unit, reason string) types.MetricValue {
	return types.MetricValue{Unit: unit, Computed: true, Reason: reason}
}

// CoerceMetric pulls a named row value out of a statement row. A key
// that is present comes back as-is, absent values included; a missing
// key yields an absent metric with the given reason.
func CoerceMetric(row map[string]types.MetricValue, key, unit, reason string) types.MetricValue {
	if metric, ok := row[key]; ok {
		return metric
	}
	return MetricMissing(unit, reason)
}

// FirstMetric returns the first key in keys whose row value is present
// with a usable number.
func FirstMetric(row map[string]types.MetricValue, keys []string, unit, reason string) types.MetricValue {
	for _, key := range keys {
		if metric, ok := row[key]; ok && metric.Value != nil {
			return metric
		}
	}
	return MetricMissing(unit, reason)
}

// WrapMetric tags a raw table cell with its statement identity. Non-nil
// inputs that are not numbers surface as absent with "Non-numeric input".
func WrapMetric(value interface{}, unit, statementID string) types.MetricValue {
	switch v := value.(type) {
	case float64:
		return types.MetricValue{Value: FloatPtr(v), Unit: unit, StatementID: statementID}
	case float32:
		return types.MetricValue{Value: FloatPtr(float64(v)), Unit: unit, StatementID: statementID}
	case int:
		return types.MetricValue{Value: FloatPtr(float64(v)), Unit: unit, StatementID: statementID}
	case int64:
		return types.MetricValue{Value: FloatPtr(float64(v)), Unit: unit, StatementID: statementID}
	case string:
		if parsed := ParseNumeric(v); parsed != nil {
			return types.MetricValue{Value: parsed, Unit: unit, StatementID: statementID}
		}
		return types.MetricValue{Unit: unit, StatementID: statementID, Reason: "Non-numeric input"}
	case nil:
		return types.MetricValue{Unit: unit, StatementID: statementID}
	default:
		return types.MetricValue{Unit: unit, StatementID: statementID, Reason: "Non-numeric input"}
	}
}

// CoerceTable maps a raw scraped table (period label -> row name -> cell)
// into a statement table whose cells carry statement identities. Period
// labels that fail statement inference (TTM columns, junk labels) still
// keep their rows, just without an identity.
func CoerceTable(raw map[string]map[string]interface{}, scope, exchange, currency, statementType string) types.StatementTable {
	if currency == "" {
		currency = "INR"
	}
	unit := "INR"
	if statementType == "cash" {
		unit = currency
	}
	table := make(types.StatementTable, len(raw))
	for period, row := range raw {
		statementID := ""
		if scope != "" && exchange != "" {
			if statement := BuildFinancialStatement(period, scope, exchange, "", currency, statementType); statement != nil {
				statementID = statement.ID
			}
		}
		mapped := make(map[string]types.MetricValue, len(row))
		for key, value := range row {
			mapped[key] = WrapMetric(value, unit, statementID)
		}
		table[period] = mapped
	}
	return table
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// PeriodSortKey orders period labels chronologically by their embedded
// year. TTM labels sort last; labels without a year sort first.
func PeriodSortKey(period string) int {
	if strings.TrimSpace(period) == "" {
		return 0
	}
	if strings.Contains(strings.ToUpper(period), "TTM") {
		return 9999
	}
	if match := yearPattern.FindString(period); match != "" {
		year, err := strconv.Atoi(match)
		if err == nil {
			return year
		}
	}
	return 0
}

// SortPeriodsByYear orders labels by year with the label itself breaking
// ties, so map iteration order never leaks into results.
func SortPeriodsByYear(periods []string) {
	sort.Slice(periods, func(i, j int) bool {
		ki, kj := PeriodSortKey(periods[i]), PeriodSortKey(periods[j])
		if ki != kj {
			return ki < kj
		}
		return periods[i] < periods[j]
	})
}

// NormalizeString lowercases and trims a scraped label.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeRowKey turns a scraped row label like "Net Profit +" into a
// canonical snake_case key.
func NormalizeRowKey(label string) string {
	cleaned := NormalizeString(label)
	cleaned = strings.ReplaceAll(cleaned, " ", " ")
	cleaned = strings.TrimSuffix(cleaned, "+")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, "%", "pct")
	var b strings.Builder
	lastUnderscore := false
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
