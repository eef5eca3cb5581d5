package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/lmoretti/finance-service/internal/models"
	"github.com/lmoretti/finance-service/internal/payplan"
	"github.com/lmoretti/finance-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Service handles business logic
type Service struct {
	store Store
	rates RateSource
	log   *logrus.Logger
}

// NewService initializes a new service
func NewService(store Store, rates RateSource, log *logrus.Logger) *Service {
	return &Service{store: store, rates: rates, log: log}
}

// CreateTransaction records a new transaction with no payments applied
func (s *Service) CreateTransaction(t *models.Transaction) error {
	if err := validateTransaction(t); err != nil {
		return err
	}
	t.PaidAmount = decimal.Zero
	t.Settled = false

	if err := s.store.CreateTransaction(t); err != nil {
		return err
	}
	s.log.Infof("Transaction created: %d (%s %s)", t.ID, t.Type, t.Amount)
	return nil
}

// GetTransaction retrieves a single transaction
func (s *Service) GetTransaction(id int64) (*models.Transaction, error) {
	return s.store.FindTransactionByID(id)
}

// ListTransactions retrieves all transactions
func (s *Service) ListTransactions() ([]models.Transaction, error) {
	return s.store.ListTransactions()
}

// UpdateTransaction updates the editable fields of a transaction. Payment
// state is never touched here; it only changes through the reconciliation
// operations.
func (s *Service) UpdateTransaction(t *models.Transaction) error {
	if err := validateTransaction(t); err != nil {
		return err
	}
	return s.store.UpdateTransaction(t)
}

// DeleteTransaction removes a transaction and its companion reminder
func (s *Service) DeleteTransaction(id int64) error {
	rem, err := s.companionFor(id)
	if err != nil {
		return err
	}
	if rem != nil {
		if err := s.store.DeleteReminder(rem.ID); err != nil {
			return err
		}
	}
	return s.store.DeleteTransaction(id)
}

// CreateInstallmentPlan generates the plan's line items and persists each as
// a transaction, plus the plan parameters for reference
func (s *Service) CreateInstallmentPlan(description, txType string, categoryID *int64, req payplan.PlanRequest) (*models.InstallmentPlan, []models.Transaction, error) {
	if txType != "income" && txType != "expense" {
		return nil, nil, &payplan.ValidationError{Reason: fmt.Sprintf("transaction type must be income or expense, got %q", txType)}
	}
	items, err := payplan.GeneratePlan(req)
	if err != nil {
		return nil, nil, err
	}

	plan := &models.InstallmentPlan{
		Description: description,
		TotalAmount: req.Total,
		DownPayment: req.DownPayment,
		Count:       req.Count,
		Frequency:   string(req.Frequency),
		StartDate:   req.StartDate,
		DayOfMonth:  req.DayOfMonth,
	}
	if err := s.store.CreatePlan(plan); err != nil {
		return nil, nil, err
	}

	transactions := make([]models.Transaction, 0, len(items))
	for _, item := range items {
		idx := item.Index
		t := models.Transaction{
			Description:      installmentDescription(description, item),
			Amount:           item.Amount,
			Type:             txType,
			CategoryID:       categoryID,
			Date:             item.DueDate,
			PaidAmount:       decimal.Zero,
			PlanID:           &plan.ID,
			InstallmentIndex: &idx,
			DownPayment:      item.DownPayment,
		}
		if err := s.store.CreateTransaction(&t); err != nil {
			return nil, nil, fmt.Errorf("failed to persist installment %d: %w", item.Index, err)
		}
		transactions = append(transactions, t)
	}

	s.log.Infof("Installment plan %d created: %d items totaling %s", plan.ID, len(items), req.Total)
	return plan, transactions, nil
}

// RegisterPayment applies a partial or full payment to a transaction and
// synchronizes its companion reminder
func (s *Service) RegisterPayment(id int64, amount decimal.Decimal) (*models.Transaction, error) {
	t, rem, err := s.loadPayable(id)
	if err != nil {
		return nil, err
	}
	res, err := payplan.ApplyPayment(payableFrom(t), amount, rem != nil)
	if err != nil {
		return nil, err
	}
	if err := s.applyReconciliation(t, rem, res); err != nil {
		return nil, err
	}
	s.log.Infof("Payment of %s registered on transaction %d, remaining %s", amount, id, t.Remaining())
	return t, nil
}

// ResetPayments undoes all payments on a transaction
func (s *Service) ResetPayments(id int64) (*models.Transaction, error) {
	t, rem, err := s.loadPayable(id)
	if err != nil {
		return nil, err
	}
	res := payplan.ResetPayments(payableFrom(t), rem != nil)
	if err := s.applyReconciliation(t, rem, res); err != nil {
		return nil, err
	}
	s.log.Infof("Payments reset on transaction %d", id)
	return t, nil
}

// SetSettled marks a transaction fully paid or unpaid, bypassing the
// incremental payment path
func (s *Service) SetSettled(id int64, settled bool) (*models.Transaction, error) {
	t, rem, err := s.loadPayable(id)
	if err != nil {
		return nil, err
	}
	res := payplan.ToggleSettled(payableFrom(t), settled, rem != nil)
	if err := s.applyReconciliation(t, rem, res); err != nil {
		return nil, err
	}
	s.log.Infof("Transaction %d marked settled=%t", id, settled)
	return t, nil
}

// RepairReminders reconciles every companion reminder against its
// transaction. The transaction's paid/total fields are the source of truth;
// reminders are a derived mirror that a failed write may have left behind.
// Returns the number of reminders fixed.
func (s *Service) RepairReminders() (int, error) {
	fixed := 0

	txs, err := s.store.ListPartiallyPaid()
	if err != nil {
		return 0, err
	}
	for i := range txs {
		t := &txs[i]
		rem, err := s.companionFor(t.ID)
		if err != nil {
			s.log.Warnf("Repair: failed to load companion of transaction %d: %v", t.ID, err)
			continue
		}
		res := payplan.RepairReminder(payableFrom(t), rem != nil)
		switch res.Action {
		case payplan.ReminderCreate:
			if err := s.createCompanion(t, res.Reminder); err != nil {
				s.log.Warnf("Repair: failed to create companion of transaction %d: %v", t.ID, err)
				continue
			}
			fixed++
		case payplan.ReminderUpdate:
			if rem.Amount.Equal(res.Reminder.Amount) {
				continue
			}
			if err := s.store.UpdateReminderAmount(rem.ID, res.Reminder.Amount); err != nil {
				s.log.Warnf("Repair: failed to update companion of transaction %d: %v", t.ID, err)
				continue
			}
			fixed++
		case payplan.ReminderDelete:
			if err := s.store.DeleteReminder(rem.ID); err != nil {
				s.log.Warnf("Repair: failed to delete companion of transaction %d: %v", t.ID, err)
				continue
			}
			fixed++
		}
	}

	// Companions whose transaction is settled, fully paid, reset or gone are
	// stale and must be removed.
	rems, err := s.store.ListCompanionReminders()
	if err != nil {
		return fixed, err
	}
	for _, rem := range rems {
		t, err := s.store.FindTransactionByID(*rem.TransactionID)
		stale := false
		switch {
		case errors.Is(err, repository.ErrNotFound):
			stale = true
		case err != nil:
			s.log.Warnf("Repair: failed to load transaction %d: %v", *rem.TransactionID, err)
			continue
		default:
			stale = t.Settled || !t.Remaining().IsPositive() || t.PaidAmount.IsZero()
		}
		if !stale {
			continue
		}
		if err := s.store.DeleteReminder(rem.ID); err != nil {
			s.log.Warnf("Repair: failed to delete stale reminder %d: %v", rem.ID, err)
			continue
		}
		fixed++
	}

	if fixed > 0 {
		s.log.Infof("Reminder repair pass fixed %d records", fixed)
	}
	return fixed, nil
}

// CreateReminder records a standalone reminder
func (s *Service) CreateReminder(rem *models.Reminder) error {
	if err := validateReminder(rem); err != nil {
		return err
	}
	rem.TransactionID = nil // companions are only created by reconciliation
	if err := s.store.CreateReminder(rem); err != nil {
		return err
	}
	s.log.Infof("Reminder created: %d (%s, due %s)", rem.ID, rem.Title, rem.DueDate.Format("2006-01-02"))
	return nil
}

// GetReminder retrieves a single reminder
func (s *Service) GetReminder(id int64) (*models.Reminder, error) {
	return s.store.FindReminderByID(id)
}

// ListReminders retrieves all reminders
func (s *Service) ListReminders() ([]models.Reminder, error) {
	return s.store.ListReminders()
}

// ListDueReminders retrieves uncompleted reminders due within the horizon
func (s *Service) ListDueReminders(horizon time.Duration) ([]models.Reminder, error) {
	return s.store.ListRemindersDueBy(time.Now().Add(horizon))
}

// UpdateReminder updates a standalone or companion reminder
func (s *Service) UpdateReminder(rem *models.Reminder) error {
	if err := validateReminder(rem); err != nil {
		return err
	}
	return s.store.UpdateReminder(rem)
}

// DeleteReminder removes a reminder
func (s *Service) DeleteReminder(id int64) error {
	return s.store.DeleteReminder(id)
}

// CreateCategory records a new category
func (s *Service) CreateCategory(c *models.Category) error {
	if err := validateCategory(c); err != nil {
		return err
	}
	return s.store.CreateCategory(c)
}

// ListCategories retrieves all categories
func (s *Service) ListCategories() ([]models.Category, error) {
	return s.store.ListCategories()
}

// UpdateCategory updates a category
func (s *Service) UpdateCategory(c *models.Category) error {
	if err := validateCategory(c); err != nil {
		return err
	}
	return s.store.UpdateCategory(c)
}

// DeleteCategory removes a category
func (s *Service) DeleteCategory(id int64) error {
	return s.store.DeleteCategory(id)
}

// MonthlySummary computes income/expense totals for a month, converted to
// the requested currency via the rate source (amounts are stored in EUR)
func (s *Service) MonthlySummary(year int, month time.Month, currency string) (*models.MonthlySummary, error) {
	if month < time.January || month > time.December {
		return nil, &payplan.ValidationError{Reason: fmt.Sprintf("invalid month %d", month)}
	}
	income, expense, err := s.store.MonthlyTotals(year, month)
	if err != nil {
		return nil, err
	}

	if currency == "" {
		currency = "EUR"
	}
	if currency != "EUR" {
		rate, err := s.rates.Rate(currency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert summary to %s: %w", currency, err)
		}
		factor := decimal.NewFromFloat(rate)
		income = income.Mul(factor).Round(2)
		expense = expense.Mul(factor).Round(2)
	}

	return &models.MonthlySummary{
		Year:     year,
		Month:    int(month),
		Currency: currency,
		Income:   income,
		Expense:  expense,
		Net:      income.Sub(expense),
	}, nil
}

// loadPayable fetches a transaction together with its companion reminder,
// which is nil when none exists.
func (s *Service) loadPayable(id int64) (*models.Transaction, *models.Reminder, error) {
	t, err := s.store.FindTransactionByID(id)
	if err != nil {
		return nil, nil, err
	}
	rem, err := s.companionFor(id)
	if err != nil {
		return nil, nil, err
	}
	return t, rem, nil
}

func (s *Service) companionFor(txID int64) (*models.Reminder, error) {
	rem, err := s.store.FindReminderByTransactionID(txID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rem, nil
}

// applyReconciliation persists a reconciliation result. The transaction is
// written first: it is authoritative, so a failed reminder write only leaves
// the derived mirror behind, which the repair pass heals. Reminder failures
// are therefore logged, not returned.
func (s *Service) applyReconciliation(t *models.Transaction, rem *models.Reminder, res payplan.Result) error {
	if err := s.store.UpdateTransactionPayment(t.ID, res.Record.Paid, res.Record.Settled); err != nil {
		return err
	}
	t.PaidAmount = res.Record.Paid
	t.Settled = res.Record.Settled

	var err error
	switch res.Action {
	case payplan.ReminderCreate:
		err = s.createCompanion(t, res.Reminder)
	case payplan.ReminderUpdate:
		err = s.store.UpdateReminderAmount(rem.ID, res.Reminder.Amount)
	case payplan.ReminderDelete:
		err = s.store.DeleteReminder(rem.ID)
	}
	if err != nil {
		s.log.Warnf("Companion reminder sync failed for transaction %d (%s): %v; repair pass will reconcile", t.ID, res.Action, err)
	}
	return nil
}

func (s *Service) createCompanion(t *models.Transaction, payload payplan.ReminderPayload) error {
	return s.store.CreateReminder(&models.Reminder{
		Title:         payload.Title,
		Amount:        payload.Amount,
		DueDate:       t.Date,
		CategoryID:    t.CategoryID,
		TransactionID: &t.ID,
	})
}

func payableFrom(t *models.Transaction) payplan.PayableRecord {
	return payplan.PayableRecord{
		Total:       t.Amount,
		Paid:        t.PaidAmount,
		Settled:     t.Settled,
		Description: t.Description,
	}
}

func installmentDescription(base string, item payplan.LineItem) string {
	if base == "" {
		base = "Installment plan"
	}
	if item.DownPayment {
		return fmt.Sprintf("%s (down payment)", base)
	}
	return fmt.Sprintf("%s (%d)", base, item.Index)
}

func validateTransaction(t *models.Transaction) error {
	if t.Description == "" {
		return &payplan.ValidationError{Reason: "description is required"}
	}
	if t.Type != "income" && t.Type != "expense" {
		return &payplan.ValidationError{Reason: fmt.Sprintf("transaction type must be income or expense, got %q", t.Type)}
	}
	if !t.Amount.IsPositive() {
		return &payplan.ValidationError{Reason: fmt.Sprintf("amount must be positive, got %s", t.Amount)}
	}
	if !t.Amount.Equal(t.Amount.Round(2)) {
		return &payplan.ValidationError{Reason: "amount must not be finer than the minor currency unit"}
	}
	return nil
}

func validateReminder(rem *models.Reminder) error {
	if rem.Title == "" {
		return &payplan.ValidationError{Reason: "title is required"}
	}
	if !rem.Amount.IsPositive() {
		return &payplan.ValidationError{Reason: fmt.Sprintf("amount must be positive, got %s", rem.Amount)}
	}
	if !rem.Amount.Equal(rem.Amount.Round(2)) {
		return &payplan.ValidationError{Reason: "amount must not be finer than the minor currency unit"}
	}
	return nil
}

func validateCategory(c *models.Category) error {
	if c.Name == "" {
		return &payplan.ValidationError{Reason: "name is required"}
	}
	if c.Kind != "income" && c.Kind != "expense" {
		return &payplan.ValidationError{Reason: fmt.Sprintf("category kind must be income or expense, got %q", c.Kind)}
	}
	return nil
}
