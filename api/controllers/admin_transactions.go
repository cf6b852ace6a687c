package controllers

import (
	"net/http"

	"github.com/gembotlabs/gembot-backend/api/responses"
	"github.com/gembotlabs/gembot-backend/api/validators"
	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

type transactionListPayload struct {
	Transactions []models.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	Offset       int                  `json:"offset"`
	Limit        int                  `json:"limit"`
}

// AdminTransactionList pages the global ledger, optionally filtered by type.
func AdminTransactionList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		types, err := parseTypeFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, total, err := svc.List(r.Context(), offset, limit, types...)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionListPayload{
			Transactions: txns,
			Total:        total,
			Offset:       offset,
			Limit:        limit,
		})
	}
}
