package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// errorStatus maps a core error to its HTTP status and stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, appointment.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, provider.ErrProviderNotFound):
		return http.StatusNotFound, "provider_not_found"
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, appointment.ErrProviderUnavailable):
		return http.StatusUnprocessableEntity, "provider_unavailable"
	case errors.Is(err, appointment.ErrUnknownSlot):
		return http.StatusUnprocessableEntity, "unknown_slot"
	case errors.Is(err, schedule.ErrUnknownDate):
		return http.StatusUnprocessableEntity, "unknown_date"
	case errors.Is(err, schedule.ErrSlotInPast):
		return http.StatusUnprocessableEntity, "slot_in_past"
	case errors.Is(err, appointment.ErrPastSlot):
		return http.StatusUnprocessableEntity, "past_slot"
	case errors.Is(err, appointment.ErrSlotAlreadyTaken):
		return http.StatusConflict, "slot_already_taken"
	case errors.Is(err, schedule.ErrDuplicateDate):
		return http.StatusConflict, "duplicate_date"
	case errors.Is(err, schedule.ErrDuplicateSlot):
		return http.StatusConflict, "duplicate_slot"
	case errors.Is(err, appointment.ErrTerminalState):
		return http.StatusConflict, "terminal_state"
	case errors.Is(err, appointment.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperr.ErrInfrastructure):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		// Store details stay in the log.
		writeError(w, status, code, http.StatusText(status))
		return
	}

	resp := ErrorResponse{Error: code, Details: err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, status, resp)
}
