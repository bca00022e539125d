package constants

// SourceWeights maps a data-source type to its confidence contribution.
var SourceWeights = map[string]int{
	"exchange":      30,
	"annual_report": 28,
	"psu_release":   26,
	"aggregator":    20,
	"scrape":        12,
}

// DefaultSourceWeight applies when the source type is present but unknown.
const DefaultSourceWeight = 12

// Grade thresholds for a confidence score.
const (
	GradeHighMin    = 85
	GradeMediumMin  = 60
	GradeLowMin     = 30
	GradeVeryLowMin = 1
)

// MetricUnits maps each computed metric to its reported unit.
var MetricUnits = map[string]string{
	"fundametrics_operating_margin":     "%",
	"fundametrics_net_margin":           "%",
	"fundametrics_interest_coverage":    "x",
	"fundametrics_return_on_equity":     "%",
	"fundametrics_asset_turnover":       "x",
	"fundametrics_eps":                  "INR",
	"fundametrics_market_cap":           "INR",
	"fundametrics_pe_ratio":             "x",
	"fundametrics_price_to_book":        "x",
	"fundametrics_debt_to_equity":       "x",
	"fundametrics_book_value_per_share": "INR",
	"fundametrics_growth_rate_internal": "%",
	"fundametrics_sales_growth_10y":     "%",
	"fundametrics_sales_growth_5y":      "%",
	"fundametrics_sales_growth_3y":      "%",
	"fundametrics_sales_growth_1y":      "%",
	"fundametrics_profit_growth_10y":    "%",
	"fundametrics_profit_growth_5y":     "%",
	"fundametrics_profit_growth_3y":     "%",
	"fundametrics_profit_growth_1y":     "%",
	"fundametrics_roe_10y":              "%",
	"fundametrics_roe_5y":               "%",
	"fundametrics_roe_3y":               "%",
}

// EquityRowKeys are the balance-sheet rows that directly carry equity.
var EquityRowKeys = []string{"shareholder_equity", "total_equity", "equity"}

// DebtRowKeys are the balance-sheet rows scanned for total debt.
var DebtRowKeys = []string{"total_debt", "borrowings", "long_term_borrowings", "debt"}
