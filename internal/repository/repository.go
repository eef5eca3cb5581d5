package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lmoretti/finance-service/internal/models"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `id, description, amount, type, category_id, date,
		paid_amount, settled, plan_id, installment_index, down_payment,
		created_at, updated_at`

// CreateTransaction creates a new transaction in the database
func (r *Repository) CreateTransaction(t *models.Transaction) error {
	query := `
		INSERT INTO finance.transactions
			(description, amount, type, category_id, date, paid_amount, settled,
			 plan_id, installment_index, down_payment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(query,
		t.Description, t.Amount, t.Type, t.CategoryID, t.Date,
		t.PaidAmount, t.Settled, t.PlanID, t.InstallmentIndex, t.DownPayment).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// FindTransactionByID retrieves a transaction by its ID
func (r *Repository) FindTransactionByID(id int64) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM finance.transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction %d: %w", id, err)
	}
	return t, nil
}

// ListTransactions retrieves all transactions, newest first
func (r *Repository) ListTransactions() ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM finance.transactions ORDER BY date DESC, id DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListPartiallyPaid retrieves unsettled transactions with payments recorded,
// the candidates for companion reminder repair
func (r *Repository) ListPartiallyPaid() ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM finance.transactions
		WHERE settled = FALSE AND paid_amount > 0
		ORDER BY id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list partially paid transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// UpdateTransaction updates the editable fields of a transaction
func (r *Repository) UpdateTransaction(t *models.Transaction) error {
	query := `
		UPDATE finance.transactions
		SET description = $1, amount = $2, type = $3, category_id = $4, date = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
		RETURNING updated_at`
	err := r.db.QueryRow(query, t.Description, t.Amount, t.Type, t.CategoryID, t.Date, t.ID).
		Scan(&t.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", t.ID, err)
	}
	return nil
}

// UpdateTransactionPayment stores the reconciled payment state of a transaction
func (r *Repository) UpdateTransactionPayment(id int64, paid decimal.Decimal, settled bool) error {
	query := `
		UPDATE finance.transactions
		SET paid_amount = $1, settled = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`
	res, err := r.db.Exec(query, paid, settled, id)
	if err != nil {
		return fmt.Errorf("failed to update payment state of transaction %d: %w", id, err)
	}
	return requireRowAffected(res)
}

// DeleteTransaction removes a transaction
func (r *Repository) DeleteTransaction(id int64) error {
	res, err := r.db.Exec(`DELETE FROM finance.transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	return requireRowAffected(res)
}

// MonthlyTotals computes income and expense sums for a calendar month
func (r *Repository) MonthlyTotals(year int, month time.Month) (income, expense decimal.Decimal, err error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM finance.transactions
		WHERE date >= $1 AND date < $2`
	if err = r.db.QueryRow(query, from, to).Scan(&income, &expense); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to compute monthly totals: %w", err)
	}
	return income, expense, nil
}

const reminderColumns = `id, title, amount, due_date, completed, category_id,
		transaction_id, created_at, updated_at`

// CreateReminder creates a new reminder in the database
func (r *Repository) CreateReminder(rem *models.Reminder) error {
	query := `
		INSERT INTO finance.reminders
			(title, amount, due_date, completed, category_id, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(query,
		rem.Title, rem.Amount, rem.DueDate, rem.Completed, rem.CategoryID, rem.TransactionID).
		Scan(&rem.ID, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// FindReminderByID retrieves a reminder by its ID
func (r *Repository) FindReminderByID(id int64) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM finance.reminders WHERE id = $1`
	rem, err := scanReminder(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder %d: %w", id, err)
	}
	return rem, nil
}

// FindReminderByTransactionID retrieves the companion reminder of a transaction
func (r *Repository) FindReminderByTransactionID(txID int64) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM finance.reminders WHERE transaction_id = $1`
	rem, err := scanReminder(r.db.QueryRow(query, txID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find companion reminder for transaction %d: %w", txID, err)
	}
	return rem, nil
}

// ListReminders retrieves all reminders ordered by due date
func (r *Repository) ListReminders() ([]models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM finance.reminders ORDER BY due_date, id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListRemindersDueBy retrieves uncompleted reminders due on or before the
// given date
func (r *Repository) ListRemindersDueBy(due time.Time) ([]models.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
		FROM finance.reminders
		WHERE completed = FALSE AND due_date <= $1
		ORDER BY due_date, id`
	rows, err := r.db.Query(query, due)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ListCompanionReminders retrieves reminders linked to a transaction
func (r *Repository) ListCompanionReminders() ([]models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM finance.reminders WHERE transaction_id IS NOT NULL ORDER BY id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companion reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// UpdateReminder updates the editable fields of a reminder
func (r *Repository) UpdateReminder(rem *models.Reminder) error {
	query := `
		UPDATE finance.reminders
		SET title = $1, amount = $2, due_date = $3, completed = $4, category_id = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $6
		RETURNING updated_at`
	err := r.db.QueryRow(query,
		rem.Title, rem.Amount, rem.DueDate, rem.Completed, rem.CategoryID, rem.ID).
		Scan(&rem.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update reminder %d: %w", rem.ID, err)
	}
	return nil
}

// UpdateReminderAmount stores a recomputed remaining balance on a companion
// reminder
func (r *Repository) UpdateReminderAmount(id int64, amount decimal.Decimal) error {
	query := `
		UPDATE finance.reminders
		SET amount = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	res, err := r.db.Exec(query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update reminder %d amount: %w", id, err)
	}
	return requireRowAffected(res)
}

// DeleteReminder removes a reminder
func (r *Repository) DeleteReminder(id int64) error {
	res, err := r.db.Exec(`DELETE FROM finance.reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder %d: %w", id, err)
	}
	return requireRowAffected(res)
}

// CreateCategory creates a new category in the database
func (r *Repository) CreateCategory(c *models.Category) error {
	query := `
		INSERT INTO finance.categories (name, icon, kind, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(query, c.Name, c.Icon, c.Kind).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// ListCategories retrieves all categories
func (r *Repository) ListCategories() ([]models.Category, error) {
	query := `SELECT id, name, icon, kind, created_at, updated_at FROM finance.categories ORDER BY name`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Kind, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory updates a category
func (r *Repository) UpdateCategory(c *models.Category) error {
	query := `
		UPDATE finance.categories
		SET name = $1, icon = $2, kind = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
		RETURNING updated_at`
	err := r.db.QueryRow(query, c.Name, c.Icon, c.Kind, c.ID).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update category %d: %w", c.ID, err)
	}
	return nil
}

// DeleteCategory removes a category
func (r *Repository) DeleteCategory(id int64) error {
	res, err := r.db.Exec(`DELETE FROM finance.categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	return requireRowAffected(res)
}

// CreatePlan stores the parameters an installment plan was generated from
func (r *Repository) CreatePlan(p *models.InstallmentPlan) error {
	query := `
		INSERT INTO finance.installment_plans
			(description, total_amount, down_payment, count, frequency, start_date, day_of_month, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query,
		p.Description, p.TotalAmount, p.DownPayment, p.Count, p.Frequency, p.StartDate, p.DayOfMonth).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create installment plan: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var categoryID, planID sql.NullInt64
	var installmentIndex sql.NullInt32
	err := row.Scan(&t.ID, &t.Description, &t.Amount, &t.Type, &categoryID, &t.Date,
		&t.PaidAmount, &t.Settled, &planID, &installmentIndex, &t.DownPayment,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.Int64
	}
	if planID.Valid {
		t.PlanID = &planID.Int64
	}
	if installmentIndex.Valid {
		idx := int(installmentIndex.Int32)
		t.InstallmentIndex = &idx
	}
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	rem := &models.Reminder{}
	var categoryID, transactionID sql.NullInt64
	err := row.Scan(&rem.ID, &rem.Title, &rem.Amount, &rem.DueDate, &rem.Completed,
		&categoryID, &transactionID, &rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		rem.CategoryID = &categoryID.Int64
	}
	if transactionID.Valid {
		rem.TransactionID = &transactionID.Int64
	}
	return rem, nil
}

func collectReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
