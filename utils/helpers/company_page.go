package helpers

import (
	"fmt"
	"strings"

	http_client "fundametrics/clients/http_client"
	"fundametrics/types"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// CompanyPage holds everything scraped off a single company page: the raw
// statement sections keyed period -> row -> cell text, the headline
// constants and the descriptive lists.
type CompanyPage struct {
	Name             string
	About            string
	Sector           string
	Constants        types.MetadataConstants
	Income           map[string]map[string]interface{}
	Balance          map[string]map[string]interface{}
	Cashflow         map[string]map[string]interface{}
	Ratios           map[string]map[string]interface{}
	Quarterly        map[string]map[string]interface{}
	QuarterlyPeriods []string
	Pros             []string
	Cons             []string
}

// constantKeys maps the headline ratio labels to constants fields.
var constantKeys = map[string]string{
	"Market Cap":     "market_cap",
	"Current Price":  "share_price",
	"Stock P/E":      "pe_ratio",
	"Book Value":     "book_value",
	"Dividend Yield": "dividend_yield",
	"ROCE":           "roce",
	"ROE":            "roe",
	"Face Value":     "face_value",
	"Debt to equity": "debt_to_equity",
}

// ParseStatementSection turns a result table into a period-keyed raw map
// ready for CoerceTable. Row labels are normalized to snake_case keys.
func ParseStatementSection(section *goquery.Selection, tableSelector string) map[string]map[string]interface{} {
	table := section.Find(tableSelector)
	if table.Length() == 0 {
		return nil
	}

	headers := []string{}
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	if len(headers) < 2 {
		return nil
	}

	data := make(map[string]map[string]interface{})
	table.Find("tbody tr").Each(func(i int, tr *goquery.Selection) {
		rowKey := NormalizeRowKey(strings.TrimSpace(tr.Find("td.text").Text()))
		if rowKey == "" {
			return
		}
		tr.Find("td").Each(func(col int, td *goquery.Selection) {
			if col == 0 || col >= len(headers) {
				return
			}
			period := headers[col]
			if period == "" || period == "-" {
				return
			}
			if _, ok := data[period]; !ok {
				data[period] = make(map[string]interface{})
			}
			data[period][rowKey] = strings.TrimSpace(td.Text())
		})
	})

	return data
}

func parseConstants(doc *goquery.Document) types.MetadataConstants {
	constants := types.MetadataConstants{}
	doc.Find("li.flex.flex-space-between[data-source='default']").Each(func(index int, item *goquery.Selection) {
		label := strings.TrimSpace(item.Find("span.name").Text())
		field, ok := constantKeys[label]
		if !ok {
			return
		}

		raw := strings.TrimSpace(item.Find("span.nowrap.value").Text())
		raw = strings.ReplaceAll(raw, "\n", "")
		raw = strings.ReplaceAll(raw, " ", "")
		value := ParseNumeric(raw)
		if value == nil {
			return
		}

		switch field {
		case "market_cap":
			constants.MarketCap = value
		case "share_price":
			constants.SharePrice = value
		case "pe_ratio":
			constants.PERatio = value
		case "book_value":
			constants.BookValue = value
		case "dividend_yield":
			// Headline yields read as percentages; keep the display scale.
			constants.DividendYield = FloatPtr(*value * 100)
		case "roce":
			constants.ROCE = FloatPtr(*value * 100)
		case "roe":
			constants.ROE = FloatPtr(*value * 100)
		case "face_value":
			constants.FaceValue = value
		case "debt_to_equity":
			constants.DebtToEquity = value
		}
	})
	return constants
}

// FetchCompanyPage downloads and parses one company page into the raw
// structures the snapshot pipeline consumes.
func FetchCompanyPage(url string) (*CompanyPage, error) {
	body, err := http_client.GetCompanyPage(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the company page: %v", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the HTML content: %v", err)
	}

	page := &CompanyPage{
		Name:      strings.TrimSpace(doc.Find("h1").First().Text()),
		About:     strings.TrimSpace(doc.Find("div.company-profile div.about p").First().Text()),
		Constants: parseConstants(doc),
	}

	if section := doc.Find("section#profit-loss"); section.Length() > 0 {
		page.Income = ParseStatementSection(section, "div[data-result-table]")
	}
	if section := doc.Find("section#balance-sheet"); section.Length() > 0 {
		page.Balance = ParseStatementSection(section, "div[data-result-table]")
	}
	if section := doc.Find("section#cash-flow"); section.Length() > 0 {
		page.Cashflow = ParseStatementSection(section, "div[data-result-table]")
	}
	if section := doc.Find("section#ratios"); section.Length() > 0 {
		page.Ratios = ParseStatementSection(section, "div[data-result-table]")
	}
	if section := doc.Find("section#quarters"); section.Length() > 0 {
		page.Quarterly = ParseStatementSection(section, "table.data-table")
		for period := range page.Quarterly {
			page.QuarterlyPeriods = append(page.QuarterlyPeriods, period)
		}
		SortPeriodsByYear(page.QuarterlyPeriods)
	}

	doc.Find("div.pros ul li").Each(func(index int, item *goquery.Selection) {
		page.Pros = append(page.Pros, strings.TrimSpace(item.Text()))
	})
	doc.Find("div.cons ul li").Each(func(index int, item *goquery.Selection) {
		page.Cons = append(page.Cons, strings.TrimSpace(item.Text()))
	})

	zap.L().Debug("parsed company page",
		zap.String("company", page.Name),
		zap.Int("income_periods", len(page.Income)),
		zap.Int("balance_periods", len(page.Balance)))

	return page, nil
}
