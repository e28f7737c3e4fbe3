package httpapi

import (
	"errors"
	"net/http"

	"github.com/sheikh-saqib/voucher-ledger/internal/reports"
)

const headerIntegrityAlert = "X-Integrity-Alert"

type ReportsHandler struct {
	reports *reports.Generator
}

func NewReportsHandler(g *reports.Generator) *ReportsHandler {
	return &ReportsHandler{reports: g}
}

// TrialBalance handles GET /api/v1/reports/trial-balance. An unbalanced
// report is still a 200; the alert travels in the body and a header.
func (h *ReportsHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOn, ok := queryDate(w, r, "as_on_date")
	if !ok {
		return
	}

	tb, err := h.reports.TrialBalance(r.Context(), asOn, r.URL.Query().Get("financial_year"))
	if err != nil {
		writeReportError(w, err)
		return
	}
	if tb.Alert != nil {
		w.Header().Set(headerIntegrityAlert, "true")
	}
	writeJSON(w, http.StatusOK, tb)
}

// DayBook handles GET /api/v1/reports/day-book.
func (h *ReportsHandler) DayBook(w http.ResponseWriter, r *http.Request) {
	q := reports.DayBookQuery{
		TypeCode:      r.URL.Query().Get("voucher_type_code"),
		FinancialYear: r.URL.Query().Get("financial_year"),
	}
	var ok bool
	if q.From, ok = queryDate(w, r, "from_date"); !ok {
		return
	}
	if q.To, ok = queryDate(w, r, "to_date"); !ok {
		return
	}

	book, err := h.reports.DayBook(r.Context(), q)
	if err != nil {
		writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func writeReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reports.ErrInvalidQuery):
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, reports.ErrUnknownFinancialYear), errors.Is(err, reports.ErrUnknownVoucherType):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to build report")
	}
}
