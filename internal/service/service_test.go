package service

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/lmoretti/finance-service/internal/models"
	"github.com/lmoretti/finance-service/internal/payplan"
	"github.com/lmoretti/finance-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	transactions map[int64]*models.Transaction
	reminders    map[int64]*models.Reminder
	categories   map[int64]*models.Category
	plans        map[int64]*models.InstallmentPlan
	nextID       int64

	// failReminderWrites simulates the second persistence step failing
	// after the transaction has already been written.
	failReminderWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions: map[int64]*models.Transaction{},
		reminders:    map[int64]*models.Reminder{},
		categories:   map[int64]*models.Category{},
		plans:        map[int64]*models.InstallmentPlan{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateTransaction(t *models.Transaction) error {
	t.ID = f.id()
	cp := *t
	f.transactions[t.ID] = &cp
	return nil
}

func (f *fakeStore) FindTransactionByID(id int64) (*models.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTransactions() ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range f.transactions {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeStore) ListPartiallyPaid() ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range f.transactions {
		if !t.Settled && t.PaidAmount.IsPositive() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTransaction(t *models.Transaction) error {
	stored, ok := f.transactions[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Description = t.Description
	stored.Amount = t.Amount
	stored.Type = t.Type
	stored.CategoryID = t.CategoryID
	stored.Date = t.Date
	return nil
}

func (f *fakeStore) UpdateTransactionPayment(id int64, paid decimal.Decimal, settled bool) error {
	t, ok := f.transactions[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.PaidAmount = paid
	t.Settled = settled
	return nil
}

func (f *fakeStore) DeleteTransaction(id int64) error {
	if _, ok := f.transactions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.transactions, id)
	return nil
}

func (f *fakeStore) MonthlyTotals(year int, month time.Month) (decimal.Decimal, decimal.Decimal, error) {
	income, expense := decimal.Zero, decimal.Zero
	for _, t := range f.transactions {
		if t.Date.Year() != year || t.Date.Month() != month {
			continue
		}
		if t.Type == "income" {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense, nil
}

func (f *fakeStore) CreateReminder(rem *models.Reminder) error {
	if f.failReminderWrites {
		return fmt.Errorf("reminder store unavailable")
	}
	rem.ID = f.id()
	cp := *rem
	f.reminders[rem.ID] = &cp
	return nil
}

func (f *fakeStore) FindReminderByID(id int64) (*models.Reminder, error) {
	rem, ok := f.reminders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rem
	return &cp, nil
}

func (f *fakeStore) FindReminderByTransactionID(txID int64) (*models.Reminder, error) {
	for _, rem := range f.reminders {
		if rem.TransactionID != nil && *rem.TransactionID == txID {
			cp := *rem
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) ListReminders() ([]models.Reminder, error) {
	var out []models.Reminder
	for _, rem := range f.reminders {
		out = append(out, *rem)
	}
	return out, nil
}

func (f *fakeStore) ListRemindersDueBy(due time.Time) ([]models.Reminder, error) {
	var out []models.Reminder
	for _, rem := range f.reminders {
		if !rem.Completed && !rem.DueDate.After(due) {
			out = append(out, *rem)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCompanionReminders() ([]models.Reminder, error) {
	var out []models.Reminder
	for _, rem := range f.reminders {
		if rem.TransactionID != nil {
			out = append(out, *rem)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateReminder(rem *models.Reminder) error {
	if f.failReminderWrites {
		return fmt.Errorf("reminder store unavailable")
	}
	stored, ok := f.reminders[rem.ID]
	if !ok {
		return repository.ErrNotFound
	}
	*stored = *rem
	return nil
}

func (f *fakeStore) UpdateReminderAmount(id int64, amount decimal.Decimal) error {
	if f.failReminderWrites {
		return fmt.Errorf("reminder store unavailable")
	}
	rem, ok := f.reminders[id]
	if !ok {
		return repository.ErrNotFound
	}
	rem.Amount = amount
	return nil
}

func (f *fakeStore) DeleteReminder(id int64) error {
	if f.failReminderWrites {
		return fmt.Errorf("reminder store unavailable")
	}
	if _, ok := f.reminders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.reminders, id)
	return nil
}

func (f *fakeStore) CreateCategory(c *models.Category) error {
	c.ID = f.id()
	cp := *c
	f.categories[c.ID] = &cp
	return nil
}

func (f *fakeStore) ListCategories() ([]models.Category, error) {
	var out []models.Category
	for _, c := range f.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) UpdateCategory(c *models.Category) error {
	if _, ok := f.categories[c.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *c
	f.categories[c.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteCategory(id int64) error {
	if _, ok := f.categories[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeStore) CreatePlan(p *models.InstallmentPlan) error {
	p.ID = f.id()
	cp := *p
	f.plans[p.ID] = &cp
	return nil
}

type fakeRates struct {
	rates map[string]float64
}

func (f *fakeRates) Rate(currency string) (float64, error) {
	if currency == "EUR" {
		return 1, nil
	}
	rate, ok := f.rates[currency]
	if !ok {
		return 0, fmt.Errorf("unknown currency %q", currency)
	}
	return rate, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(store *fakeStore) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(store, &fakeRates{rates: map[string]float64{"USD": 1.1}}, log)
}

func seedTransaction(t *testing.T, store *fakeStore, amount string) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		Description: "New sofa",
		Amount:      d(amount),
		Type:        "expense",
		Date:        time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC),
		PaidAmount:  decimal.Zero,
	}
	require.NoError(t, store.CreateTransaction(tx))
	return tx
}

func TestRegisterPaymentCreatesCompanion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")

	updated, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)
	assert.True(t, updated.PaidAmount.Equal(d("200.00")))
	assert.False(t, updated.Settled)

	rem, err := store.FindReminderByTransactionID(tx.ID)
	require.NoError(t, err)
	assert.True(t, rem.Amount.Equal(d("300.00")))
	assert.Equal(t, "New sofa", rem.Title)
	assert.False(t, rem.Completed)
}

func TestRegisterPaymentFullSettlement(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")

	updated, err := svc.RegisterPayment(tx.ID, d("500.00"))
	require.NoError(t, err)
	assert.True(t, updated.Settled)
	assert.True(t, updated.Remaining().IsZero())

	_, err = store.FindReminderByTransactionID(tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRegisterPaymentSequenceDeletesCompanion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")

	_, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)
	updated, err := svc.RegisterPayment(tx.ID, d("300.00"))
	require.NoError(t, err)

	assert.True(t, updated.Settled)
	_, err = store.FindReminderByTransactionID(tx.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, store.reminders)
}

func TestRegisterPaymentRejectedWithoutMutation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")
	_, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)

	_, err = svc.RegisterPayment(tx.ID, d("301.00"))
	require.Error(t, err)
	assert.True(t, payplan.IsValidation(err))

	stored, err := store.FindTransactionByID(tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(d("200.00")))
	rem, err := store.FindReminderByTransactionID(tx.ID)
	require.NoError(t, err)
	assert.True(t, rem.Amount.Equal(d("300.00")))
}

func TestResetPayments(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")
	_, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)

	updated, err := svc.ResetPayments(tx.ID)
	require.NoError(t, err)
	assert.True(t, updated.PaidAmount.IsZero())
	assert.False(t, updated.Settled)
	assert.Empty(t, store.reminders)
}

func TestSetSettledToggle(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")
	_, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)

	updated, err := svc.SetSettled(tx.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Settled)
	assert.True(t, updated.PaidAmount.Equal(d("500.00")))
	assert.Empty(t, store.reminders)

	updated, err = svc.SetSettled(tx.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Settled)
	assert.True(t, updated.PaidAmount.IsZero())
}

func TestReminderWriteFailureIsHealedByRepair(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")

	// The reminder step fails, but the payment itself must stick: the
	// transaction is the source of truth.
	store.failReminderWrites = true
	updated, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)
	assert.True(t, updated.PaidAmount.Equal(d("200.00")))
	assert.Empty(t, store.reminders)

	store.failReminderWrites = false
	fixed, err := svc.RepairReminders()
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	rem, err := store.FindReminderByTransactionID(tx.ID)
	require.NoError(t, err)
	assert.True(t, rem.Amount.Equal(d("300.00")))
}

func TestRepairFixesDriftedAmountAndStaleCompanions(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	// Drifted companion: amount no longer matches the remaining balance.
	drifted := seedTransaction(t, store, "500.00")
	_, err := svc.RegisterPayment(drifted.ID, d("100.00"))
	require.NoError(t, err)
	rem, err := store.FindReminderByTransactionID(drifted.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpdateReminderAmount(rem.ID, d("999.00")))

	// Stale companion: its transaction is already settled.
	settled := seedTransaction(t, store, "100.00")
	_, err = svc.RegisterPayment(settled.ID, d("60.00"))
	require.NoError(t, err)
	staleRem, err := store.FindReminderByTransactionID(settled.ID)
	require.NoError(t, err)
	store.transactions[settled.ID].PaidAmount = d("100.00")
	store.transactions[settled.ID].Settled = true

	fixed, err := svc.RepairReminders()
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	rem, err = store.FindReminderByTransactionID(drifted.ID)
	require.NoError(t, err)
	assert.True(t, rem.Amount.Equal(d("400.00")))
	_, err = store.FindReminderByID(staleRem.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRepairIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")
	_, err := svc.RegisterPayment(tx.ID, d("100.00"))
	require.NoError(t, err)

	fixed, err := svc.RepairReminders()
	require.NoError(t, err)
	assert.Equal(t, 0, fixed)
}

func TestCreateInstallmentPlan(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	plan, txs, err := svc.CreateInstallmentPlan("New sofa", "expense", nil, payplan.PlanRequest{
		Total:       d("1000.00"),
		DownPayment: d("100.00"),
		Count:       3,
		Frequency:   payplan.FrequencyMonthly,
		StartDate:   time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, txs, 4)
	assert.True(t, plan.ID > 0)

	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
		require.NotNil(t, tx.PlanID)
		assert.Equal(t, plan.ID, *tx.PlanID)
		assert.False(t, tx.Settled)
		assert.True(t, tx.PaidAmount.IsZero())
	}
	assert.True(t, sum.Equal(d("1000.00")))
	assert.True(t, txs[0].DownPayment)
	assert.Equal(t, "New sofa (down payment)", txs[0].Description)
	assert.Equal(t, "New sofa (2)", txs[2].Description)
	assert.Len(t, store.transactions, 4)
}

func TestCreateInstallmentPlanValidationFailure(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, _, err := svc.CreateInstallmentPlan("Sofa", "expense", nil, payplan.PlanRequest{
		Total:     decimal.Zero,
		Count:     3,
		Frequency: payplan.FrequencyMonthly,
	})
	require.Error(t, err)
	assert.True(t, payplan.IsValidation(err))
	assert.Empty(t, store.transactions)
	assert.Empty(t, store.plans)
}

func TestDeleteTransactionRemovesCompanion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	tx := seedTransaction(t, store, "500.00")
	_, err := svc.RegisterPayment(tx.ID, d("200.00"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(tx.ID))
	assert.Empty(t, store.transactions)
	assert.Empty(t, store.reminders)
}

func TestMonthlySummaryWithConversion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	april := time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.CreateTransaction(&models.Transaction{
		Description: "Salary", Amount: d("100.00"), Type: "income", Date: april,
	}))
	require.NoError(t, svc.CreateTransaction(&models.Transaction{
		Description: "Groceries", Amount: d("40.00"), Type: "expense", Date: april,
	}))

	summary, err := svc.MonthlySummary(2025, time.April, "")
	require.NoError(t, err)
	assert.Equal(t, "EUR", summary.Currency)
	assert.True(t, summary.Income.Equal(d("100.00")))
	assert.True(t, summary.Expense.Equal(d("40.00")))
	assert.True(t, summary.Net.Equal(d("60.00")))

	summary, err = svc.MonthlySummary(2025, time.April, "USD")
	require.NoError(t, err)
	assert.True(t, summary.Income.Equal(d("110.00")))
	assert.True(t, summary.Expense.Equal(d("44.00")))

	_, err = svc.MonthlySummary(2025, time.April, "XXX")
	require.Error(t, err)
}

func TestCreateTransactionValidation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	err := svc.CreateTransaction(&models.Transaction{
		Description: "Bad", Amount: d("-1.00"), Type: "expense",
	})
	require.Error(t, err)
	assert.True(t, payplan.IsValidation(err))

	err = svc.CreateTransaction(&models.Transaction{
		Description: "Bad", Amount: d("1.00"), Type: "transfer",
	})
	require.Error(t, err)
	assert.True(t, payplan.IsValidation(err))
}
