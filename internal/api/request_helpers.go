package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/1001stories/stories-api/internal/api/shared"
	"github.com/1001stories/stories-api/internal/domain"
	"github.com/1001stories/stories-api/internal/service"
	"github.com/1001stories/stories-api/internal/service/auth"
)

// actorFromRequest returns the authenticated caller. It writes a 401 and
// returns false when the auth middleware did not run.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	userID, role, ok := shared.UserFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Role: role}, true
}

// getPathUUID parses the chi path parameter name as a UUID.
func getPathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrInvalidID, name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, name)
	}
	return id, nil
}

// actorAndPathUUID combines actorFromRequest and getPathUUID, writing the
// error response when either fails.
func actorAndPathUUID(w http.ResponseWriter, r *http.Request, name string) (service.Actor, uuid.UUID, bool) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return actor, uuid.Nil, false
	}
	id, err := getPathUUID(r, name)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return actor, uuid.Nil, false
	}
	return actor, id, true
}

// decodeAndValidate decodes the JSON body into v and validates it, writing
// a 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}

// pagination reads limit and offset query parameters. Missing or malformed
// values are zero and the services apply their defaults.
func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
