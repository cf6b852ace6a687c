package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gembotlabs/gembot-backend/api/responses"
	"github.com/gembotlabs/gembot-backend/api/validators"
	"github.com/gembotlabs/gembot-backend/internal/members"
	"github.com/gembotlabs/gembot-backend/internal/subscription"
	"github.com/gembotlabs/gembot-backend/pkg/db/models"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

type memberListPayload struct {
	Members []models.Member `json:"members"`
	Total   int64           `json:"total"`
	Offset  int             `json:"offset"`
	Limit   int             `json:"limit"`
}

// AdminMemberList pages the member roster for the back office.
func AdminMemberList(svc *members.Service, logg *logger.Logger) http.HandlerFunc {
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

		found, total, err := svc.List(r.Context(), offset, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, memberListPayload{
			Members: found,
			Total:   total,
			Offset:  offset,
			Limit:   limit,
		})
	}
}

// AdminMemberDetail returns one member by id.
func AdminMemberDetail(svc *members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := memberIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := svc.FindByID(r.Context(), memberID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if member == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "member not found"))
			return
		}
		responses.WriteSuccess(w, member)
	}
}

type adminMemberUpdateRequest struct {
	IsActive            *bool      `json:"is_active"`
	SubscriptionExpires *time.Time `json:"subscription_expires"`
	EarningsBalance     *float64   `json:"earnings_balance"`
	FirstName           *string    `json:"first_name"`
	LastName            *string    `json:"last_name"`
	Mobile              *string    `json:"mobile"`
}

// AdminMemberUpdate rewrites the restricted field set on a member.
func AdminMemberUpdate(svc *members.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID, err := memberIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adminMemberUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := svc.AdminUpdate(r.Context(), memberID, members.AdminUpdateInput{
			IsActive:            body.IsActive,
			SubscriptionExpires: body.SubscriptionExpires,
			EarningsBalance:     body.EarningsBalance,
			FirstName:           body.FirstName,
			LastName:            body.LastName,
			Mobile:              body.Mobile,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, member)
	}
}

// AdminGraceMembers lists members whose grace window is currently open.
func AdminGraceMembers(svc *subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		found, err := svc.ListGraceMembers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, found)
	}
}

// AdminGraceSweep forfeits the escrow of every member past their grace window.
func AdminGraceSweep(svc *subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.SweepExpiredGracePeriods(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func memberIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "memberId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member id")
	}
	return id, nil
}
