package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its code maps to. Internal errors
// are logged and their detail withheld from the caller.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	code := errors.CodeOf(err)
	detail := errorDetail{Code: code, Message: err.Error()}

	var e *errors.Error
	if errors.As(err, &e) {
		detail.Message = e.Message
		detail.Field = e.Field
	}
	if code == errors.ErrCodeInternal {
		log.Error().Err(err).Msg("Request failed")
		detail.Message = "internal error"
	}
	writeJSON(w, httpStatus(code), errorBody{Error: detail})
}

func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
