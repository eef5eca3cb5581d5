package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentPlan records the parameters an installment plan was generated
// from. The generated line items live in the transactions table and point
// back here via plan_id.
type InstallmentPlan struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DownPayment decimal.Decimal `json:"down_payment"`
	Count       int             `json:"count"`
	Frequency   string          `json:"frequency"`
	StartDate   time.Time       `json:"start_date"`
	DayOfMonth  int             `json:"day_of_month"`
	CreatedAt   time.Time       `json:"created_at"`
}
