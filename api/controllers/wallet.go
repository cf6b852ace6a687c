package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/api/responses"
	"github.com/gembotlabs/gembot-backend/api/validators"
	"github.com/gembotlabs/gembot-backend/internal/wallet"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

// WalletSummary renders balances, fee settings and recent wallet activity.
func WalletSummary(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		summary, err := svc.Summarize(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type internalTransferRequest struct {
	Kind   string          `json:"kind" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// InternalTransfer moves funds between the member's own balance buckets.
func InternalTransfer(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body internalTransferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseTransferKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid transfer kind"))
			return
		}

		result, err := svc.InternalTransfer(r.Context(), memberID, kind, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type userTransferRequest struct {
	Recipient string          `json:"recipient" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

// UserTransfer sends deposit funds to another member by email or referral code.
func UserTransfer(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body userTransferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UserTransfer(r.Context(), memberID, body.Recipient, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type withdrawRequest struct {
	ToAddress string          `json:"to_address" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

// Withdraw sends earnings to an external wallet through the payment provider.
func Withdraw(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body withdrawRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Withdraw(r.Context(), memberID, body.ToAddress, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
