// Package httpapi exposes voucher posting, balances and reports as a JSON API.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sheikh-saqib/voucher-ledger/internal/ledger"
	"github.com/sheikh-saqib/voucher-ledger/internal/reports"
)

// NewRouter builds the HTTP handler. log may be nil.
func NewRouter(l *ledger.Ledger, g *reports.Generator, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	vouchers := NewVouchersHandler(l, log)
	ledgers := NewLedgersHandler(l)
	rpts := NewReportsHandler(g)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/", vouchers.Create)
			r.Post("/validate", vouchers.Validate)
			r.Get("/{id}", vouchers.Get)
		})

		r.Get("/ledgers/{id}/balance", ledgers.Balance)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", rpts.TrialBalance)
			r.Get("/day-book", rpts.DayBook)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
