package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inmo-payments/internal/transport/auth"
)

func (h *Handler) exportSchedule(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.GetTenantID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	planID, err := planIDFromURL(r)
	if err != nil {
		ErrorBadRequest(w, "invalid plan id")
		return
	}

	exportID, err := h.exports.StartScheduleExport(r.Context(), tenantID, userID, planID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessAccepted(w, "Exportación encolada", map[string]interface{}{
		"export_id": exportID,
	})
}

func (h *Handler) getExports(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.GetTenantID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	statuses, err := h.exports.GetExports(r.Context(), tenantID, userID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Exportaciones", map[string]interface{}{"exports": statuses})
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.GetTenantID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	exportID := chi.URLParam(r, "exportID")
	if exportID == "" {
		ErrorBadRequest(w, "invalid export id")
		return
	}

	status, err := h.exports.GetExport(r.Context(), tenantID, userID, exportID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Exportación", status)
}
