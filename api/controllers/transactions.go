package controllers

import (
	"net/http"
	"strings"

	"github.com/gembotlabs/gembot-backend/api/responses"
	"github.com/gembotlabs/gembot-backend/api/validators"
	"github.com/gembotlabs/gembot-backend/internal/ledger"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

const memberTransactionLimit = 100

// MemberTransactions lists the authenticated member's transaction history,
// optionally filtered by type.
func MemberTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", memberTransactionLimit, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		types, err := parseTypeFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := svc.ListForMember(r.Context(), memberID, limit, types...)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txns)
	}
}

func parseTypeFilter(r *http.Request) ([]enums.TransactionType, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("type"))
	if raw == "" {
		return nil, nil
	}

	var types []enums.TransactionType
	for _, part := range strings.Split(raw, ",") {
		t := enums.TransactionType(strings.TrimSpace(part))
		if !t.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type").
				WithDetails(map[string]any{"type": string(t)})
		}
		types = append(types, t)
	}
	return types, nil
}
