package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reminder represents an upcoming payment notice. A reminder with a
// TransactionID is a companion: it mirrors that transaction's remaining
// balance and is created, updated and deleted by the reconciliation flow.
type Reminder struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"due_date"`
	Completed     bool            `json:"completed"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
