package models

import "github.com/shopspring/decimal"

// MonthlySummary represents monthly income and expense statistics,
// optionally converted into another currency.
type MonthlySummary struct {
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Currency string          `json:"currency"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Net      decimal.Decimal `json:"net"`
}
