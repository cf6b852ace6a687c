package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gembotlabs/gembot-backend/api/middleware"
	"github.com/gembotlabs/gembot-backend/api/responses"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

// requireActor extracts the authenticated actor id; on failure it writes the
// error response and reports false.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id := middleware.ActorUUIDFromContext(r.Context())
	if id == uuid.Nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return uuid.Nil, false
	}
	return id, true
}
