package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rohits-web03/dispatch/internal/services"
	"github.com/rohits-web03/dispatch/internal/utils"
)

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindInvalidState, services.KindAlreadyExists,
		services.KindAlreadyAdded, services.KindMissingAction:
		return http.StatusBadRequest
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a failed payload. Errors without a kind are
// logged and reported as internal errors.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		utils.Fail(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	status := statusFor(se.Kind)
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("dependency failure")
	}
	utils.JSONResponse(w, status, utils.Payload{
		Success: false,
		Message: se.Message,
		Reason:  string(se.Kind),
		Errors:  se.Details,
	})
}

func invalidInput(w http.ResponseWriter, message string) {
	utils.Fail(w, http.StatusBadRequest, string(services.KindValidation), message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		invalidInput(w, "Invalid input")
		return false
	}
	return true
}

// pathID parses the named numeric path parameter.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := utils.ParseID(r.PathValue(name))
	if err != nil {
		invalidInput(w, "Invalid "+name)
		return 0, false
	}
	return id, true
}
