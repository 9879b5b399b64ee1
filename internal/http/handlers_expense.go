package http

import (
	"encoding/json"
	"net/http"

	"groupspend/internal/services"
	"groupspend/internal/storage"
)

type createExpenseRequest struct {
	GroupID    int64  `json:"group_id"`
	CategoryID *int64 `json:"category_id"`
	// Amount is in major units and may be sent as a number or a string.
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Note     string      `json:"note"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.expenses.CreateExpense(r.Context(), services.ExpenseInput{
		UserID:     userID,
		GroupID:    req.GroupID,
		CategoryID: req.CategoryID,
		Amount:     req.Amount.String(),
		Currency:   sanitizeInput(req.Currency),
		Note:       sanitizeInput(req.Note),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

type expensePageResponse struct {
	storage.ExpensePage
	HasNext bool `json:"has_next"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := actingUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := r.URL.Query()
	page, err := parsePage(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := storage.ParseExpenseQuery(userID, query.Get("sort"), query.Get("dir"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.expenses.ListExpenses(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expensePageResponse{ExpensePage: result, HasNext: result.HasNext()})
}
