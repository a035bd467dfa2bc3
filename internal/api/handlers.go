package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/identity"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

type appointmentHandlers struct {
	svc    *appointment.Service
	logger *logging.Logger
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func appointmentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Invalid("id", "must be a valid UUID")
	}
	return id, nil
}

func providerRef(r *http.Request) (provider.Ref, error) {
	verr := &apperr.ValidationError{}
	kind, err := provider.ParseKind(chi.URLParam(r, "kind"))
	verr.Merge(err)
	var id uuid.UUID
	if raw := chi.URLParam(r, "id"); raw != "" {
		if id, err = uuid.Parse(raw); err != nil {
			verr.Add("provider_id", "must be a valid UUID")
		}
	}
	if err := verr.OrNil(); err != nil {
		return provider.Ref{}, err
	}
	return provider.Ref{Kind: kind, ID: id}, nil
}

func actor(r *http.Request) string {
	if p, ok := identity.FromContext(r.Context()); ok {
		return string(p.Role) + ":" + p.Subject
	}
	return ""
}

func (h *appointmentHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	verr := &apperr.ValidationError{}
	kind, err := provider.ParseKind(req.ProviderKind)
	verr.Merge(err)
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		verr.Add("provider_id", "must be a valid UUID")
	}
	if err := verr.OrNil(); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), identity.PatientID(r.Context()), appointment.CreateRequest{
		Provider: provider.Ref{Kind: kind, ID: providerID},
		Patient: appointment.Patient{
			Name:   req.Patient.Name,
			Age:    req.Patient.Age,
			Gender: req.Patient.Gender,
			Mobile: req.Patient.Mobile,
		},
		Date:          req.Date,
		Time:          req.Time,
		Fee:           req.Fee,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) mine(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListByPatient(r.Context(), identity.PatientID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if upcoming, _ := strconv.ParseBool(r.URL.Query().Get("upcoming")); upcoming {
		items = appointment.UpcomingForPatient(items, schedule.DateOf(h.svc.Now()))
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(items))
}

func (h *appointmentHandlers) patientCancel(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	appt, err := h.svc.CancelByPatient(r.Context(), id, identity.PatientID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	page, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentPageResponse{
		Items:  toAppointmentResponses(page.Items),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func parseFilter(q url.Values) (appointment.Filter, error) {
	var f appointment.Filter
	verr := &apperr.ValidationError{}

	f.PatientID = strings.TrimSpace(q.Get("patient_id"))
	rawKind, rawID := q.Get("provider_kind"), q.Get("provider_id")
	if rawKind != "" || rawID != "" {
		kind, err := provider.ParseKind(rawKind)
		verr.Merge(err)
		id, err := uuid.Parse(rawID)
		if err != nil {
			verr.Add("provider_id", "must be a valid UUID")
		}
		f.Provider = &provider.Ref{Kind: kind, ID: id}
	}
	if raw := q.Get("status"); raw != "" {
		s, err := appointment.ParseStatus(raw)
		verr.Merge(err)
		f.Status = s
	}
	if raw := q.Get("from"); raw != "" {
		d, err := schedule.ParseDate(raw)
		if err != nil {
			verr.Add("from", "must be a YYYY-MM-DD date")
		}
		f.From = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := schedule.ParseDate(raw)
		if err != nil {
			verr.Add("to", "must be a YYYY-MM-DD date")
		}
		f.To = d
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add(name, "must be an integer")
			continue
		}
		*dst = n
	}
	return f, verr.OrNil()
}

func (h *appointmentHandlers) transition(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to, err := appointment.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	appt, err := h.svc.AdminTransition(r.Context(), id, to, actor(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) adminCancel(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	appt, err := h.svc.Cancel(r.Context(), id, actor(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req RescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), id, req.Date, req.Time, actor(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *appointmentHandlers) dashboard(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
