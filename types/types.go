package types

import "time"

// Company identifies a listed company whose statements get processed.
type Company struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FinancialStatement carries the identity of one reported statement.
type FinancialStatement struct {
	ID          string     `json:"id" bson:"id"`
	Type        string     `json:"type,omitempty" bson:"type,omitempty"`
	Scope       string     `json:"scope" bson:"scope"`
	Exchange    string     `json:"exchange" bson:"exchange"`
	Frequency   string     `json:"frequency" bson:"frequency"`
	PeriodStart *time.Time `json:"period_start,omitempty" bson:"period_start,omitempty"`
	PeriodEnd   time.Time  `json:"period_end" bson:"period_end"`
	Currency    string     `json:"currency" bson:"currency"`
	Sources     []string   `json:"sources,omitempty" bson:"sources,omitempty"`
}

// ConfidenceScore grades how reliable a computed figure is.
type ConfidenceScore struct {
	Score   int            `json:"score" bson:"score"`
	Grade   string         `json:"grade" bson:"grade"`
	Factors map[string]int `json:"factors,omitempty" bson:"factors,omitempty"`
}

// ConfidenceContext holds the evidence the scorer works from. Pointer
// fields distinguish "not provided" from zero.
type ConfidenceContext struct {
	SourceType        *string    `json:"source_type,omitempty"`
	GeneratedAt       *time.Time `json:"generated_at,omitempty"`
	TTLHours          *float64   `json:"ttl_hours,omitempty"`
	FreshnessRatio    *float64   `json:"freshness_ratio,omitempty"`
	StatementStatus   string     `json:"statement_status,omitempty"`
	Completeness      string     `json:"completeness,omitempty"`
	CompletenessRatio *float64   `json:"completeness_ratio,omitempty"`
	Stability         *int       `json:"stability,omitempty"`
}

// MetricValue is a single financial figure plus its provenance. A nil
// Value means the figure is absent and Reason says why.
type MetricValue struct {
	Value            *float64           `json:"value" bson:"value"`
	Unit             string             `json:"unit" bson:"unit"`
	StatementID      string             `json:"statement_id,omitempty" bson:"statement_id,omitempty"`
	Computed         bool               `json:"computed" bson:"computed"`
	Reason           string             `json:"reason,omitempty" bson:"reason,omitempty"`
	Confidence       *ConfidenceScore   `json:"confidence,omitempty" bson:"confidence,omitempty"`
	ConfidenceInputs *ConfidenceContext `json:"-" bson:"-"`
}

// MetadataConstants are per-share figures scraped from the company
// snapshot header rather than a statement table.
type MetadataConstants struct {
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty" bson:"shares_outstanding,omitempty"`
	FaceValue         *float64 `json:"face_value,omitempty" bson:"face_value,omitempty"`
	SharePrice        *float64 `json:"share_price,omitempty" bson:"share_price,omitempty"`
	MarketCap         *float64 `json:"market_cap,omitempty" bson:"market_cap,omitempty"`
	PERatio           *float64 `json:"pe_ratio,omitempty" bson:"pe_ratio,omitempty"`
	ROE               *float64 `json:"roe,omitempty" bson:"roe,omitempty"`
	ROCE              *float64 `json:"roce,omitempty" bson:"roce,omitempty"`
	DividendYield     *float64 `json:"dividend_yield,omitempty" bson:"dividend_yield,omitempty"`
	BookValue         *float64 `json:"book_value,omitempty" bson:"book_value,omitempty"`
	DebtToEquity      *float64 `json:"debt_to_equity,omitempty" bson:"debt_to_equity,omitempty"`
}

// ComputeMetadata travels alongside the statement tables into the engines.
type ComputeMetadata struct {
	Generated         *time.Time        `json:"generated,omitempty" bson:"generated,omitempty"`
	TTLHours          *float64          `json:"ttl_hours,omitempty" bson:"ttl_hours,omitempty"`
	SharesOutstanding *float64          `json:"shares_outstanding,omitempty" bson:"shares_outstanding,omitempty"`
	SharePrice        *float64          `json:"share_price,omitempty" bson:"share_price,omitempty"`
	Constants         MetadataConstants `json:"constants,omitempty" bson:"constants,omitempty"`
}

// StatementTable maps period label -> row name -> value.
type StatementTable map[string]map[string]MetricValue

// CompanySnapshot is the persisted unit of work: everything needed to
// recompute metrics for one company.
type CompanySnapshot struct {
	SnapshotID  string            `json:"snapshot_id" bson:"snapshot_id"`
	CompanyName string            `json:"company_name" bson:"company_name"`
	CompanyURL  string            `json:"company_url,omitempty" bson:"company_url,omitempty"`
	Income      StatementTable    `json:"income_statement,omitempty" bson:"income_statement,omitempty"`
	Balance     StatementTable    `json:"balance_sheet,omitempty" bson:"balance_sheet,omitempty"`
	Cashflow    StatementTable    `json:"cash_flow,omitempty" bson:"cash_flow,omitempty"`
	Ratios      StatementTable    `json:"scraped_ratios,omitempty" bson:"scraped_ratios,omitempty"`
	Metadata    ComputeMetadata   `json:"metadata" bson:"metadata"`
	UpdatedAt   time.Time         `json:"updated_at" bson:"updated_at"`
	Warnings    []string          `json:"warnings,omitempty" bson:"warnings,omitempty"`
}

// MetricsComputedEvent is published after a snapshot's metrics are recomputed.
type MetricsComputedEvent struct {
	SnapshotID  string    `json:"snapshot_id"`
	CompanyName string    `json:"company_name"`
	MetricCount int       `json:"metric_count"`
	RatioCount  int       `json:"ratio_count"`
	Integrity   string    `json:"integrity"`
	ComputedAt  time.Time `json:"computed_at"`
}
