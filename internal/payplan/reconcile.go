package payplan

import "github.com/shopspring/decimal"

// State classifies a payable record by how much of it has been paid.
type State string

const (
	StateUnpaid        State = "unpaid"
	StatePartiallyPaid State = "partially_paid"
	StateSettled       State = "settled"
)

// PayableRecord is the authoritative view of an amount being paid down over
// time. The companion reminder mirrors its remaining balance and can always
// be recomputed from it.
type PayableRecord struct {
	Total       decimal.Decimal
	Paid        decimal.Decimal
	Settled     bool
	Description string
	Category    string
}

// Remaining returns the balance still owed.
func (r PayableRecord) Remaining() decimal.Decimal {
	return r.Total.Sub(r.Paid)
}

func (r PayableRecord) State() State {
	switch {
	case r.Paid.GreaterThanOrEqual(r.Total):
		return StateSettled
	case r.Paid.IsPositive():
		return StatePartiallyPaid
	default:
		return StateUnpaid
	}
}

// ReminderAction tells the caller what to do with the companion reminder
// after a reconciliation step. The engine never touches storage itself.
type ReminderAction int

const (
	ReminderNone ReminderAction = iota
	ReminderCreate
	ReminderUpdate
	ReminderDelete
)

func (a ReminderAction) String() string {
	switch a {
	case ReminderCreate:
		return "create"
	case ReminderUpdate:
		return "update"
	case ReminderDelete:
		return "delete"
	default:
		return "none"
	}
}

// ReminderPayload carries the fields for a reminder create or update.
type ReminderPayload struct {
	Title  string
	Amount decimal.Decimal
}

// Result is the outcome of a reconciliation step: the updated record plus
// the reminder side effect the caller must persist. The record must be
// persisted before the reminder so that a failure in the second step leaves
// the authoritative side ahead, never behind.
type Result struct {
	Record   PayableRecord
	Action   ReminderAction
	Reminder ReminderPayload
}

// ApplyPayment registers a partial or full payment against the record. The
// amount must be positive, at minor-unit precision and no greater than the
// remaining balance; otherwise a ValidationError is returned and the record
// is unchanged.
func ApplyPayment(rec PayableRecord, amount decimal.Decimal, hasReminder bool) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, validationf("invalid payment amount: %s is not positive", amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return Result{}, validationf("invalid payment amount: %s is finer than the minor currency unit", amount)
	}
	if remaining := rec.Remaining(); amount.GreaterThan(remaining) {
		return Result{}, validationf("invalid payment amount: %s exceeds remaining balance %s", amount, remaining)
	}

	rec.Paid = rec.Paid.Add(amount)
	remaining := rec.Remaining()
	if remaining.IsPositive() {
		rec.Settled = false
		return Result{Record: rec, Action: upsertAction(hasReminder), Reminder: reminderFor(rec)}, nil
	}
	rec.Settled = true
	return Result{Record: rec, Action: deleteAction(hasReminder)}, nil
}

// ResetPayments undoes all recorded payments, returning the record to the
// unpaid state.
func ResetPayments(rec PayableRecord, hasReminder bool) Result {
	rec.Paid = decimal.Zero
	rec.Settled = false
	return Result{Record: rec, Action: deleteAction(hasReminder)}
}

// ToggleSettled is the binary paid/unpaid shortcut used alongside the
// incremental payment path: true records the full total as paid, false
// behaves as a reset.
func ToggleSettled(rec PayableRecord, toSettled, hasReminder bool) Result {
	if !toSettled {
		return ResetPayments(rec, hasReminder)
	}
	rec.Paid = rec.Total
	rec.Settled = true
	return Result{Record: rec, Action: deleteAction(hasReminder)}
}

// RepairReminder recomputes the companion reminder state the record should
// have. The repair pass runs it over stored records to heal drift left by a
// failed reminder write.
func RepairReminder(rec PayableRecord, hasReminder bool) Result {
	if rec.Settled || !rec.Remaining().IsPositive() {
		return Result{Record: rec, Action: deleteAction(hasReminder)}
	}
	return Result{Record: rec, Action: upsertAction(hasReminder), Reminder: reminderFor(rec)}
}

func upsertAction(hasReminder bool) ReminderAction {
	if hasReminder {
		return ReminderUpdate
	}
	return ReminderCreate
}

func deleteAction(hasReminder bool) ReminderAction {
	if hasReminder {
		return ReminderDelete
	}
	return ReminderNone
}

func reminderFor(rec PayableRecord) ReminderPayload {
	title := rec.Description
	if title == "" {
		title = rec.Category
	}
	if title == "" {
		title = "Pending payment"
	}
	return ReminderPayload{Title: title, Amount: rec.Remaining()}
}
