package controllers

import (
	"net/http"

	"github.com/gembotlabs/gembot-backend/api/responses"
	"github.com/gembotlabs/gembot-backend/internal/subscription"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

type activationPayload struct {
	Activated bool `json:"activated"`
}

// SubscriptionCheck verifies the member's external balance and activates or
// renews the subscription when it covers the required amount.
func SubscriptionCheck(svc *subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		activated, err := svc.CheckAndActivate(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, activationPayload{Activated: activated})
	}
}
