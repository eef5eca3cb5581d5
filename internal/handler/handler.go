package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/lmoretti/finance-service/internal/models"
	"github.com/lmoretti/finance-service/internal/payplan"
	"github.com/lmoretti/finance-service/internal/repository"
	"github.com/lmoretti/finance-service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes attaches all API routes to the router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	r.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	r.HandleFunc("/transactions/installments", h.CreateInstallmentPlan).Methods("POST")
	r.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	r.HandleFunc("/transactions/{id}", h.UpdateTransaction).Methods("PUT")
	r.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")
	r.HandleFunc("/transactions/{id}/payments", h.RegisterPayment).Methods("POST")
	r.HandleFunc("/transactions/{id}/reset", h.ResetPayments).Methods("POST")
	r.HandleFunc("/transactions/{id}/settle", h.SetSettled).Methods("POST")

	r.HandleFunc("/reminders", h.CreateReminder).Methods("POST")
	r.HandleFunc("/reminders", h.ListReminders).Methods("GET")
	r.HandleFunc("/reminders/due", h.ListDueReminders).Methods("GET")
	r.HandleFunc("/reminders/repair", h.RepairReminders).Methods("POST")
	r.HandleFunc("/reminders/{id}", h.GetReminder).Methods("GET")
	r.HandleFunc("/reminders/{id}", h.UpdateReminder).Methods("PUT")
	r.HandleFunc("/reminders/{id}", h.DeleteReminder).Methods("DELETE")

	r.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/categories/{id}", h.UpdateCategory).Methods("PUT")
	r.HandleFunc("/categories/{id}", h.DeleteCategory).Methods("DELETE")

	r.HandleFunc("/summary", h.MonthlySummary).Methods("GET")
}

type transactionRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	CategoryID  *int64          `json:"category_id"`
	Date        time.Time       `json:"date"`
}

// CreateTransaction handles transaction creation
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t := &models.Transaction{
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
	}
	if err := h.svc.CreateTransaction(t); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, t)
}

// ListTransactions handles transaction listing
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.svc.ListTransactions()
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles single transaction retrieval
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.GetTransaction(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

// UpdateTransaction handles edits to a transaction's own fields
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t := &models.Transaction{
		ID:          id,
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
	}
	if err := h.svc.UpdateTransaction(t); err != nil {
		h.respondError(w, err)
		return
	}
	updated, err := h.svc.GetTransaction(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteTransaction handles transaction deletion
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTransaction(id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type installmentPlanRequest struct {
	Description string `json:"description"`
	Type        string `json:"type"`
	CategoryID  *int64 `json:"category_id"`
	payplan.PlanRequest
}

type installmentPlanResponse struct {
	Plan         *models.InstallmentPlan `json:"plan"`
	Transactions []models.Transaction    `json:"transactions"`
}

// CreateInstallmentPlan generates an installment plan and persists its line
// items as transactions
func (h *Handler) CreateInstallmentPlan(w http.ResponseWriter, r *http.Request) {
	var req installmentPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	plan, transactions, err := h.svc.CreateInstallmentPlan(req.Description, req.Type, req.CategoryID, req.PlanRequest)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, installmentPlanResponse{Plan: plan, Transactions: transactions})
}

// RegisterPayment applies a payment to a transaction
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t, err := h.svc.RegisterPayment(id, req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

// ResetPayments undoes all payments on a transaction
func (h *Handler) ResetPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.ResetPayments(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

// SetSettled marks a transaction paid or unpaid
func (h *Handler) SetSettled(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Settled bool `json:"settled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	t, err := h.svc.SetSettled(id, req.Settled)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

type reminderRequest struct {
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"due_date"`
	Completed  bool            `json:"completed"`
	CategoryID *int64          `json:"category_id"`
}

// CreateReminder handles standalone reminder creation
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rem := &models.Reminder{
		Title:      req.Title,
		Amount:     req.Amount,
		DueDate:    req.DueDate,
		Completed:  req.Completed,
		CategoryID: req.CategoryID,
	}
	if err := h.svc.CreateReminder(rem); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, rem)
}

// ListReminders handles reminder listing
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.svc.ListReminders()
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, reminders)
}

// ListDueReminders lists uncompleted reminders due within the given number
// of days (default 0 = due today or overdue)
func (h *Handler) ListDueReminders(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = parsed
	}
	reminders, err := h.svc.ListDueReminders(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, reminders)
}

// RepairReminders runs the companion reminder repair pass
func (h *Handler) RepairReminders(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.svc.RepairReminders()
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"fixed": fixed})
}

// GetReminder handles single reminder retrieval
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rem, err := h.svc.GetReminder(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rem)
}

// UpdateReminder handles reminder edits
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rem := &models.Reminder{
		ID:         id,
		Title:      req.Title,
		Amount:     req.Amount,
		DueDate:    req.DueDate,
		Completed:  req.Completed,
		CategoryID: req.CategoryID,
	}
	if err := h.svc.UpdateReminder(rem); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rem)
}

// DeleteReminder handles reminder deletion
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteReminder(id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
	Kind string `json:"kind"`
}

// CreateCategory handles category creation
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c := &models.Category{Name: req.Name, Icon: req.Icon, Kind: req.Kind}
	if err := h.svc.CreateCategory(c); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, c)
}

// ListCategories handles category listing
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories()
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, categories)
}

// UpdateCategory handles category edits
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c := &models.Category{ID: id, Name: req.Name, Icon: req.Icon, Kind: req.Kind}
	if err := h.svc.UpdateCategory(c); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

// DeleteCategory handles category deletion
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MonthlySummary reports income and expense totals for a month
func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		http.Error(w, "Invalid year parameter", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		http.Error(w, "Invalid month parameter", http.StatusBadRequest)
		return
	}
	summary, err := h.svc.MonthlySummary(year, time.Month(month), q.Get("currency"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case payplan.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		h.log.Errorf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
