package helpers

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"fundametrics/types"
)

var monthMap = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// InferFrequency reads the reporting cadence off a period label. TTM
// columns carry no single reporting period, so they return empty and the
// caller must treat the label as unusable.
func InferFrequency(period string) string {
	token := strings.ToLower(strings.TrimSpace(period))
	if strings.HasPrefix(token, "q") || strings.Contains(token, "quarter") {
		return "quarterly"
	}
	if strings.HasPrefix(token, "ttm") {
		return ""
	}
	return "annual"
}

func resolveMonth(token string) int {
	cleaned := strings.ToLower(strings.TrimSpace(token))
	// "sept" resolves through its 3-letter prefix like every other month
	if len(cleaned) > 3 {
		cleaned = cleaned[:3]
	}
	return monthMap[cleaned]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// InferPeriodEnd parses a period label like "Mar 2023", "FY23" or
// "2023-03" into the period's closing date. Labels without a resolvable
// year return the zero time.
func InferPeriodEnd(period string) time.Time {
	token := strings.TrimSpace(period)
	if token == "" {
		return time.Time{}
	}

	token = strings.ReplaceAll(token, "/", " ")
	token = strings.ReplaceAll(token, "-", " ")
	parts := strings.Fields(token)

	year := 0
	month := 0
	for _, part := range parts {
		upper := strings.ToUpper(part)
		if isDigits(part) && len(part) == 4 {
			y := 0
			fmt.Sscanf(part, "%d", &y)
			year = y
		} else if strings.HasPrefix(upper, "FY") && (len(part) == 4 || len(part) == 5) {
			suffix := part[2:]
			if isDigits(suffix) {
				y := 0
				fmt.Sscanf(suffix, "%d", &y)
				year = 2000 + y
			}
		} else if resolved := resolveMonth(part); resolved != 0 {
			month = resolved
		}
	}

	if year == 0 {
		return time.Time{}
	}
	if month == 0 {
		// Indian filings default to a March year-end
		month = 3
	}

	day := 30
	switch {
	case month == 3:
		day = 31
	case month == 1 || month == 5 || month == 7 || month == 8 || month == 10 || month == 12:
		day = 31
	case month == 2:
		if year%4 == 0 {
			day = 29
		} else {
			day = 28
		}
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// InferPeriodStart derives the opening date of the reporting window that
// closes on periodEnd.
func InferPeriodStart(frequency string, periodEnd time.Time) time.Time {
	if frequency == "annual" {
		if periodEnd.Month() == time.March {
			return time.Date(periodEnd.Year()-1, time.April, 1, 0, 0, 0, 0, time.UTC)
		}
		month := int(periodEnd.Month()) + 1
		if month > 12 {
			month = 1
		}
		return time.Date(periodEnd.Year()-1, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}

	// quarter spans three months ending on periodEnd
	month := int(periodEnd.Month()) - 2
	year := periodEnd.Year()
	if month <= 0 {
		month += 12
		year--
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// BuildFinancialStatement assembles a statement identity from a period
// label plus scope and exchange. It fails closed: any label whose
// frequency or period end cannot be pinned down yields nil rather than a
// guessed identity. statementType defaults to "income" when empty.
func BuildFinancialStatement(period, scope, exchange, frequency, currency, statementType string) *types.FinancialStatement {
	if frequency == "" {
		frequency = InferFrequency(period)
	}
	if frequency == "" {
		return nil
	}

	periodEnd := InferPeriodEnd(period)
	if periodEnd.IsZero() {
		return nil
	}
	if scope == "" || exchange == "" {
		return nil
	}
	if currency == "" {
		currency = "INR"
	}
	if statementType == "" {
		statementType = "income"
	}

	periodStart := InferPeriodStart(frequency, periodEnd)
	id := fmt.Sprintf("%s_%s_%s_%s",
		strings.ToUpper(scope),
		strings.ToUpper(exchange),
		strings.ToUpper(frequency),
		periodEnd.Format("2006-01-02"),
	)

	return &types.FinancialStatement{
		ID:          id,
		Type:        statementType,
		Scope:       scope,
		Exchange:    exchange,
		Frequency:   frequency,
		PeriodStart: &periodStart,
		PeriodEnd:   periodEnd,
		Currency:    currency,
	}
}

// CloneStatementWithType copies a statement under a new statement type,
// retagging the identity so income and balance rows sharing a period
// never collide.
func CloneStatementWithType(statement *types.FinancialStatement, statementType string) *types.FinancialStatement {
	if statement == nil {
		return nil
	}
	clone := *statement
	clone.ID = statement.ID + ":" + strings.ToUpper(statementType)
	clone.Type = statementType
	return &clone
}
