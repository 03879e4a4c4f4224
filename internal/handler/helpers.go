package handler

import (
	"errors"
	"net/http"
	"strconv"

	"infostore/internal/domain"
	"infostore/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var (
		conflictErr   *domain.ConflictError
		truncationErr *domain.TruncationError
		staleErr      *domain.ConcurrentModificationError
	)

	switch {
	case errors.As(err, &truncationErr):
		fields := make([]string, 0, len(truncationErr.Truncations))
		for _, f := range truncationErr.Fields() {
			fields = append(fields, f.String())
		}
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, truncationErr.Error(), map[string]interface{}{
			"fields": fields,
		})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUserInput):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &staleErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, staleErr.Error(), map[string]interface{}{
			"last_modified": staleErr.LastModified,
		})
	case errors.Is(err, domain.ErrConcurrentModification):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &conflictErr):
		extras := map[string]interface{}{"resource_type": conflictErr.ResourceType}
		if conflictErr.ResourceID != "" {
			extras["resource_id"] = conflictErr.ResourceID
		}
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), extras)
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTryAgain):
		httputil.RespondError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry the request")
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// PathID parses a positive integer path parameter. It writes a 400 and
// returns false when the value is missing or malformed.
func PathID(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	raw := r.PathValue(name)
	if raw == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, label+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &domain.ValidationError{Message: name + " must be a non-negative integer"}
	}
	return n, nil
}

// queryInt64 reads an optional int64 query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, &domain.ValidationError{Message: name + " must be a non-negative integer"}
	}
	return n, nil
}
