package service

import (
	"time"

	"github.com/lmoretti/finance-service/internal/models"
	"github.com/shopspring/decimal"
)

// Store defines the persistence operations the service depends on. The SQL
// repository implements it; tests substitute a fake.
type Store interface {
	CreateTransaction(t *models.Transaction) error
	FindTransactionByID(id int64) (*models.Transaction, error)
	ListTransactions() ([]models.Transaction, error)
	ListPartiallyPaid() ([]models.Transaction, error)
	UpdateTransaction(t *models.Transaction) error
	UpdateTransactionPayment(id int64, paid decimal.Decimal, settled bool) error
	DeleteTransaction(id int64) error
	MonthlyTotals(year int, month time.Month) (income, expense decimal.Decimal, err error)

	CreateReminder(rem *models.Reminder) error
	FindReminderByID(id int64) (*models.Reminder, error)
	FindReminderByTransactionID(txID int64) (*models.Reminder, error)
	ListReminders() ([]models.Reminder, error)
	ListRemindersDueBy(due time.Time) ([]models.Reminder, error)
	ListCompanionReminders() ([]models.Reminder, error)
	UpdateReminder(rem *models.Reminder) error
	UpdateReminderAmount(id int64, amount decimal.Decimal) error
	DeleteReminder(id int64) error

	CreateCategory(c *models.Category) error
	ListCategories() ([]models.Category, error)
	UpdateCategory(c *models.Category) error
	DeleteCategory(id int64) error

	CreatePlan(p *models.InstallmentPlan) error
}

// RateSource provides EUR-based exchange rates for summary conversion.
type RateSource interface {
	Rate(currency string) (float64, error)
}
