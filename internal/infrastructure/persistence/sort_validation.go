package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds a whitelisted "column DIR" clause
func orderClause(field, dir string, allowed map[string]bool, defaultField string) string {
	return ValidateSortField(field, allowed, defaultField) + " " + ValidateSortOrder(dir)
}

// ReconciliationIssueSortFields contains allowed sort fields for reconciliation issues
var ReconciliationIssueSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"kind":       true,
	"status":     true,
	"payment_id": true,
	"invoice_id": true,
	"amount":     true,
}
