package helpers

import (
	"testing"
	"time"
)

func TestBuildFinancialStatement_AnnualMarchLabel(t *testing.T) {
	statement := BuildFinancialStatement("Mar 2023", "consolidated", "NSE", "", "", "")
	if statement == nil {
		t.Fatal("Expected a statement, got nil")
	}
	if statement.ID != "CONSOLIDATED_NSE_ANNUAL_2023-03-31" {
		t.Errorf("Unexpected id %q", statement.ID)
	}
	if statement.Frequency != "annual" {
		t.Errorf("Expected annual, got %q", statement.Frequency)
	}
	wantEnd := time.Date(2023, time.March, 31, 0, 0, 0, 0, time.UTC)
	if !statement.PeriodEnd.Equal(wantEnd) {
		t.Errorf("Expected period end %v, got %v", wantEnd, statement.PeriodEnd)
	}
	wantStart := time.Date(2022, time.April, 1, 0, 0, 0, 0, time.UTC)
	if statement.PeriodStart == nil || !statement.PeriodStart.Equal(wantStart) {
		t.Errorf("Expected period start %v, got %v", wantStart, statement.PeriodStart)
	}
	if statement.Currency != "INR" {
		t.Errorf("Expected INR default, got %q", statement.Currency)
	}
	if statement.Type != "income" {
		t.Errorf("Expected income default, got %q", statement.Type)
	}
}

func TestBuildFinancialStatement_CarriesStatementType(t *testing.T) {
	statement := BuildFinancialStatement("Mar 2023", "consolidated", "NSE", "", "", "balance")
	if statement == nil {
		t.Fatal("Expected a statement, got nil")
	}
	if statement.Type != "balance" {
		t.Errorf("Expected balance, got %q", statement.Type)
	}
	// the identity string stays type-free; CloneStatementWithType retags it
	if statement.ID != "CONSOLIDATED_NSE_ANNUAL_2023-03-31" {
		t.Errorf("Unexpected id %q", statement.ID)
	}
}

func TestCloneStatementWithType(t *testing.T) {
	statement := BuildFinancialStatement("Mar 2023", "consolidated", "NSE", "", "", "")
	if statement == nil {
		t.Fatal("Expected a statement, got nil")
	}
	clone := CloneStatementWithType(statement, "cash")
	if clone.ID != "CONSOLIDATED_NSE_ANNUAL_2023-03-31:CASH" {
		t.Errorf("Unexpected clone id %q", clone.ID)
	}
	if clone.Type != "cash" {
		t.Errorf("Expected cash, got %q", clone.Type)
	}
	if !clone.PeriodEnd.Equal(statement.PeriodEnd) || clone.Scope != statement.Scope {
		t.Error("Clone should keep all fields besides id and type")
	}
	if statement.ID != "CONSOLIDATED_NSE_ANNUAL_2023-03-31" || statement.Type != "income" {
		t.Error("Clone must not mutate the source statement")
	}
	if CloneStatementWithType(nil, "cash") != nil {
		t.Error("Expected nil for nil source")
	}
}

func TestBuildFinancialStatement_TTMFailsClosed(t *testing.T) {
	if statement := BuildFinancialStatement("TTM", "consolidated", "NSE", "", "", ""); statement != nil {
		t.Errorf("Expected nil for TTM label, got %+v", statement)
	}
}

func TestBuildFinancialStatement_UnparseableLabelFailsClosed(t *testing.T) {
	if statement := BuildFinancialStatement("garbage", "consolidated", "NSE", "", "", ""); statement != nil {
		t.Errorf("Expected nil for yearless label, got %+v", statement)
	}
}

func TestBuildFinancialStatement_MissingScopeOrExchange(t *testing.T) {
	if statement := BuildFinancialStatement("Mar 2023", "", "NSE", "", "", ""); statement != nil {
		t.Errorf("Expected nil without scope, got %+v", statement)
	}
	if statement := BuildFinancialStatement("Mar 2023", "consolidated", "", "", "", ""); statement != nil {
		t.Errorf("Expected nil without exchange, got %+v", statement)
	}
}

func TestBuildFinancialStatement_FYLabel(t *testing.T) {
	statement := BuildFinancialStatement("FY23", "standalone", "BSE", "", "", "")
	if statement == nil {
		t.Fatal("Expected a statement, got nil")
	}
	if statement.ID != "STANDALONE_BSE_ANNUAL_2023-03-31" {
		t.Errorf("Unexpected id %q", statement.ID)
	}
}

func TestBuildFinancialStatement_QuarterlyLabel(t *testing.T) {
	statement := BuildFinancialStatement("Q2 Sep 2023", "consolidated", "NSE", "", "", "")
	if statement == nil {
		t.Fatal("Expected a statement, got nil")
	}
	if statement.Frequency != "quarterly" {
		t.Errorf("Expected quarterly, got %q", statement.Frequency)
	}
	wantEnd := time.Date(2023, time.September, 30, 0, 0, 0, 0, time.UTC)
	if !statement.PeriodEnd.Equal(wantEnd) {
		t.Errorf("Expected %v, got %v", wantEnd, statement.PeriodEnd)
	}
	wantStart := time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC)
	if statement.PeriodStart == nil || !statement.PeriodStart.Equal(wantStart) {
		t.Errorf("Expected %v, got %v", wantStart, statement.PeriodStart)
	}
}

func TestInferPeriodEnd_FebruaryLeapHandling(t *testing.T) {
	end := InferPeriodEnd("Feb 2024")
	if end.Day() != 29 {
		t.Errorf("Expected Feb 29 in 2024, got %d", end.Day())
	}
	end = InferPeriodEnd("Feb 2023")
	if end.Day() != 28 {
		t.Errorf("Expected Feb 28 in 2023, got %d", end.Day())
	}
}

func TestInferPeriodEnd_YearOnlyDefaultsToMarch(t *testing.T) {
	end := InferPeriodEnd("2022")
	want := time.Date(2022, time.March, 31, 0, 0, 0, 0, time.UTC)
	if !end.Equal(want) {
		t.Errorf("Expected %v, got %v", want, end)
	}
}

func TestInferPeriodStart_QuarterWrapsYear(t *testing.T) {
	end := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)
	start := InferPeriodStart("quarterly", end)
	want := time.Date(2022, time.November, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("Expected %v, got %v", want, start)
	}
}
