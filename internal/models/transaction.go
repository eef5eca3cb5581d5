package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a financial transaction. Amount is the total owed;
// entries paid down over time track their progress in PaidAmount/Settled,
// with the remaining balance mirrored on a companion reminder. Entries
// generated from an installment plan carry the plan reference and their
// position in it.
type Transaction struct {
	ID               int64           `json:"id"`
	Description      string          `json:"description"`
	Amount           decimal.Decimal `json:"amount"`
	Type             string          `json:"type"` // income or expense
	CategoryID       *int64          `json:"category_id,omitempty"`
	Date             time.Time       `json:"date"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	Settled          bool            `json:"settled"`
	PlanID           *int64          `json:"plan_id,omitempty"`
	InstallmentIndex *int            `json:"installment_index,omitempty"`
	DownPayment      bool            `json:"down_payment"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Remaining returns the balance still owed on the transaction.
func (t *Transaction) Remaining() decimal.Decimal {
	return t.Amount.Sub(t.PaidAmount)
}
