package controllers

import (
	"net/http"

	"github.com/gembotlabs/gembot-backend/api/responses"
	"github.com/gembotlabs/gembot-backend/api/validators"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/subscription"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	"github.com/gembotlabs/gembot-backend/pkg/enums"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

type profilePayload struct {
	Member          *models.Member           `json:"user"`
	Status          enums.SubscriptionStatus `json:"subscription_status"`
	DirectReferrals int64                    `json:"direct_referrals"`
}

// MemberProfile returns the authenticated member with their resolved
// subscription status and live referral count.
func MemberProfile(memberSvc *members.Service, subSvc *subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		member, err := memberSvc.FindByID(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if member == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "member not found"))
			return
		}

		status, err := subSvc.Status(r.Context(), member)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		referrals, err := memberSvc.CountDirectReferrals(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profilePayload{
			Member:          member,
			Status:          status,
			DirectReferrals: referrals,
		})
	}
}

type updateProfileRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Mobile    string `json:"mobile" validate:"required"`
}

// MemberUpdateProfile rewrites the editable profile fields.
func MemberUpdateProfile(memberSvc *members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := memberSvc.UpdateProfile(r.Context(), memberID,
			validators.SanitizeString(body.FirstName, 120),
			validators.SanitizeString(body.LastName, 120),
			validators.SanitizeString(body.Mobile, 32))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, member)
	}
}

type teamPayload struct {
	Levels []members.TeamLevel `json:"levels"`
	Total  int                 `json:"total"`
}

// MemberTeam renders the member's downline by generation.
func MemberTeam(memberSvc *members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		levels, total, err := memberSvc.Team(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, teamPayload{Levels: levels, Total: total})
	}
}
