package rest

import (
	"net/http"

	"inmo-payments/internal/transport/auth"
)

func (h *Handler) getStatement(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.GetTenantID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}
	planID, err := planIDFromURL(r)
	if err != nil {
		ErrorBadRequest(w, "invalid plan id")
		return
	}

	statement, err := h.statements.GetAccountStatement(r.Context(), tenantID, planID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Estado de cuenta", statement)
}
