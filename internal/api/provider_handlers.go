package api

import (
	"net/http"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

type providerHandlers struct {
	svc    *provider.Service
	appts  *appointment.Service
	logger *logging.Logger
}

func (h *providerHandlers) list(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	items, err := h.svc.List(r.Context(), ref.Kind)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	out := make([]ProviderResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toProviderResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *providerHandlers) get(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.Get(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

// dates lists the provider's calendar in selection order with per-slot bookability.
func (h *providerHandlers) dates(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	agenda, err := h.appts.Agenda(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, agenda)
}

func (h *providerHandlers) create(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req ProviderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	p, err := h.svc.Create(r.Context(), provider.Provider{
		Kind:      ref.Kind,
		Name:      req.Name,
		Category:  req.Category,
		Fee:       req.Fee,
		Available: available,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderResponse(*p))
}

func (h *providerHandlers) update(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req ProviderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	current, err := h.svc.Get(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	next := *current
	next.Name = req.Name
	next.Category = req.Category
	next.Fee = req.Fee
	if req.Available != nil {
		next.Available = *req.Available
	}
	p, err := h.svc.Update(r.Context(), next)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *providerHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), ref); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *providerHandlers) setAvailability(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req AvailabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Available == nil {
		writeServiceError(w, r, h.logger, apperr.Invalid("available", "is required"))
		return
	}
	p, err := h.svc.SetAvailability(r.Context(), ref, *req.Available)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *providerHandlers) addDate(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req AddDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.AddDate(r.Context(), ref, req.Date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderResponse(*p))
}

func (h *providerHandlers) removeDate(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.RemoveDate(r.Context(), ref, pathParam(r, "date"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *providerHandlers) addSlot(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	var req AddSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.AddSlot(r.Context(), ref, pathParam(r, "date"), req.Time, req.AutoCreateDate)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderResponse(*p))
}

func (h *providerHandlers) removeSlot(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	p, err := h.svc.RemoveSlot(r.Context(), ref, pathParam(r, "date"), pathParam(r, "time"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *providerHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ref, err := providerRef(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	st, err := h.appts.ProviderStats(r.Context(), ref)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
