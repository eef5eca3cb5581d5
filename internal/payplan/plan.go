// Package payplan implements installment plan generation and payment
// reconciliation for payable records. All functions are pure: they take
// value objects, perform no I/O and return new values, so callers may
// invoke them from any number of request handlers without coordination.
package payplan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency determines how installment due dates advance.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// PlanRequest describes an installment plan to generate.
type PlanRequest struct {
	Total       decimal.Decimal `json:"total"`
	DownPayment decimal.Decimal `json:"down_payment"`
	Count       int             `json:"count"`
	Frequency   Frequency       `json:"frequency"`
	StartDate   time.Time       `json:"start_date"`
	// DayOfMonth, when 1-31, overrides the day component of every generated
	// date, clamped to the last valid day of the month. 0 keeps the start
	// date's day.
	DayOfMonth int `json:"day_of_month"`
	// ManualDates switches the generator to manual mode: exactly Count dates
	// that replace the generated due dates one-for-one by index.
	ManualDates []time.Time `json:"manual_dates,omitempty"`
}

// LineItem is one dated installment of a generated plan.
type LineItem struct {
	Index       int             `json:"index"`
	DueDate     time.Time       `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	DownPayment bool            `json:"down_payment"`
}

// GeneratePlan splits the requested total into dated installments. The down
// payment, when positive, becomes item 0 due on the start date; the residual
// is split evenly over Count items rounded to the minor currency unit, with
// the last item absorbing the rounding remainder so the amounts sum to the
// total exactly.
func GeneratePlan(req PlanRequest) ([]LineItem, error) {
	if err := validatePlanRequest(req); err != nil {
		return nil, err
	}

	count := int64(req.Count)
	residual := req.Total.Sub(req.DownPayment)
	per := residual.Div(decimal.NewFromInt(count)).Round(2)
	last := residual.Sub(per.Mul(decimal.NewFromInt(count - 1)))
	if !per.IsPositive() || !last.IsPositive() {
		return nil, validationf("cannot split %s into %d installments at minor-unit precision", residual, req.Count)
	}

	items := make([]LineItem, 0, req.Count+1)
	if req.DownPayment.IsPositive() {
		items = append(items, LineItem{
			Index:       0,
			DueDate:     req.StartDate,
			Amount:      req.DownPayment,
			DownPayment: true,
		})
	}

	for i := 1; i <= req.Count; i++ {
		amount := per
		if i == req.Count {
			amount = last
		}
		due := req.Frequency.step(req.StartDate, i-1)
		if req.DayOfMonth > 0 {
			due = dateWithDay(due, req.DayOfMonth)
		}
		if req.ManualDates != nil {
			due = req.ManualDates[i-1]
		}
		items = append(items, LineItem{Index: i, DueDate: due, Amount: amount})
	}
	return items, nil
}

func validatePlanRequest(req PlanRequest) error {
	if !req.Total.IsPositive() {
		return validationf("total amount must be positive, got %s", req.Total)
	}
	if req.DownPayment.IsNegative() {
		return validationf("down payment must not be negative, got %s", req.DownPayment)
	}
	if req.DownPayment.GreaterThanOrEqual(req.Total) {
		return validationf("down payment %s must be less than total %s", req.DownPayment, req.Total)
	}
	if !req.Total.Equal(req.Total.Round(2)) || !req.DownPayment.Equal(req.DownPayment.Round(2)) {
		return validationf("amounts must not be finer than the minor currency unit")
	}
	if req.Count < 1 {
		return validationf("installment count must be at least 1, got %d", req.Count)
	}
	if req.Frequency != FrequencyMonthly && req.Frequency != FrequencyYearly {
		return validationf("unknown frequency %q", req.Frequency)
	}
	if req.DayOfMonth < 0 || req.DayOfMonth > 31 {
		return validationf("day of month must be between 1 and 31, got %d", req.DayOfMonth)
	}
	if req.ManualDates != nil && len(req.ManualDates) != req.Count {
		return validationf("manual mode requires %d dates, got %d", req.Count, len(req.ManualDates))
	}
	return nil
}

// step advances the start date by n frequency periods, clamping to the end
// of the month when the start day does not exist in the target month
// (Jan 31 + 1 month = Feb 28/29, never Mar 3).
func (f Frequency) step(start time.Time, n int) time.Time {
	if n == 0 {
		return start
	}
	y, m, d := start.Date()
	switch f {
	case FrequencyYearly:
		y += n
	default:
		m += time.Month(n)
	}
	return clampedDate(y, m, d, start)
}

// dateWithDay replaces the day component, clamped to the month's last day.
func dateWithDay(t time.Time, day int) time.Time {
	y, m, _ := t.Date()
	return clampedDate(y, m, day, t)
}

func clampedDate(year int, month time.Month, day int, ref time.Time) time.Time {
	// Normalize month overflow first so clamping applies to the real target
	// month.
	norm := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
	y, m, _ := norm.Date()
	if last := daysIn(y, m); day > last {
		day = last
	}
	hh, mm, ss := ref.Clock()
	return time.Date(y, m, day, hh, mm, ss, ref.Nanosecond(), ref.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
