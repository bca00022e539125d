package services

import (
	"errors"

	"fundametrics/types"
)

// ErrCrossStatementMismatch reports inputs drawn from different statements.
var ErrCrossStatementMismatch = errors.New("cross-statement mismatch")

const reasonCrossStatement = "Cross-statement mismatch"
const reasonInsufficientData = "Insufficient data"

// ValidateSameStatement rejects metric combinations whose tagged
// statements disagree. Untagged metrics are compatible with anything.
func ValidateSameStatement(metrics ...types.MetricValue) error {
	seen := ""
	for _, metric := range metrics {
		if metric.StatementID == "" {
			continue
		}
		if seen == "" {
			seen = metric.StatementID
			continue
		}
		if metric.StatementID != seen {
			return ErrCrossStatementMismatch
		}
	}
	return nil
}
