package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/ledger"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerUser           = "X-User-ID"
)

// ValidationErrorResponse is the 422 body for a rejected voucher.
type ValidationErrorResponse struct {
	ErrorResponse
	Reason      ledger.Reason    `json:"reason"`
	Details     string           `json:"details,omitempty"`
	EntryIndex  *int             `json:"entry_index,omitempty"`
	LedgerID    string           `json:"ledger_id,omitempty"`
	Difference  *decimal.Decimal `json:"difference,omitempty"`
	TotalDebit  *decimal.Decimal `json:"total_debit,omitempty"`
	TotalCredit *decimal.Decimal `json:"total_credit,omitempty"`
}

type PostVoucherResponse struct {
	VoucherID     string `json:"voucher_id"`
	VoucherNumber string `json:"voucher_number"`
	Replayed      bool   `json:"replayed"`
}

type ValidateVoucherResponse struct {
	Valid       bool            `json:"valid"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// VouchersHandler handles voucher endpoints.
type VouchersHandler struct {
	ledger *ledger.Ledger
	log    *slog.Logger
}

func NewVouchersHandler(l *ledger.Ledger, log *slog.Logger) *VouchersHandler {
	return &VouchersHandler{ledger: l, log: log}
}

// Create handles POST /api/v1/vouchers.
func (h *VouchersHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVoucher(w, r)
	if !ok {
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	req.CreatedBy = r.Header.Get(headerUser)

	result, err := h.ledger.PostVoucher(r.Context(), req)
	if err != nil {
		h.writePostError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, PostVoucherResponse{
		VoucherID:     result.Voucher.ID,
		VoucherNumber: result.Voucher.Number,
		Replayed:      result.Replayed,
	})
}

// Validate handles POST /api/v1/vouchers/validate.
func (h *VouchersHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVoucher(w, r)
	if !ok {
		return
	}

	v, err := h.ledger.Validate(req)
	if err != nil {
		h.writePostError(w, err)
		return
	}

	debit, credit := v.Totals()
	writeJSON(w, http.StatusOK, ValidateVoucherResponse{Valid: true, TotalDebit: debit, TotalCredit: credit})
}

// Get handles GET /api/v1/vouchers/{id}.
func (h *VouchersHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.ledger.VoucherDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", "Voucher not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to load voucher", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to load voucher")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func decodeVoucher(w http.ResponseWriter, r *http.Request) (ledger.VoucherRequest, bool) {
	var req ledger.VoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body: "+err.Error())
		return ledger.VoucherRequest{}, false
	}
	return req, true
}

func (h *VouchersHandler) writePostError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse(verr))
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "concurrency_conflict", err.Error())
	default:
		h.log.Error("failed to post voucher", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "persistence_failure", "Voucher was not recorded")
	}
}

func validationResponse(verr *ledger.ValidationError) ValidationErrorResponse {
	resp := ValidationErrorResponse{
		ErrorResponse: ErrorResponse{Error: "validation_failed", ErrorDescription: verr.Error()},
		Reason:        verr.Reason,
		Details:       verr.Details,
		LedgerID:      verr.LedgerID,
	}
	if verr.EntryIndex >= 0 {
		idx := verr.EntryIndex
		resp.EntryIndex = &idx
	}
	if verr.Reason == ledger.ReasonUnbalancedVoucher {
		diff, debit, credit := verr.Difference, verr.TotalDebit, verr.TotalCredit
		resp.Difference = &diff
		resp.TotalDebit = &debit
		resp.TotalCredit = &credit
	}
	return resp
}

// LedgersHandler handles ledger balance queries.
type LedgersHandler struct {
	ledger *ledger.Ledger
}

func NewLedgersHandler(l *ledger.Ledger) *LedgersHandler {
	return &LedgersHandler{ledger: l}
}

// Balance handles GET /api/v1/ledgers/{id}/balance. Without from_date the
// opening is the ledger's recorded opening balance; without as_on_date the
// balance runs to the latest entry.
func (h *LedgersHandler) Balance(w http.ResponseWriter, r *http.Request) {
	var p ledger.Period
	var ok bool
	if p.From, ok = queryDate(w, r, "from_date"); !ok {
		return
	}
	if p.To, ok = queryDate(w, r, "as_on_date"); !ok {
		return
	}

	bal, err := h.ledger.Balance(r.Context(), chi.URLParam(r, "id"), p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, bal)
	case errors.Is(err, ledger.ErrUnknownLedger):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrInvalidPeriod):
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to compute balance")
	}
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(w http.ResponseWriter, r *http.Request, name string) (models.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return models.Date{}, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid "+name+": "+err.Error())
		return models.Date{}, false
	}
	return d, true
}
