package rest

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"inmo-payments/internal/domain"
	"inmo-payments/internal/service"
	"inmo-payments/internal/transport/auth"
)

type applyPaymentRequest struct {
	Monto        decimal.Decimal `json:"monto"`
	FechaPago    string          `json:"fecha_pago"`
	Metodo       string          `json:"metodo"`
	Referencia   string          `json:"referencia"`
	CuotaDestino *int64          `json:"cuota_destino"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
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

	var req applyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	in := service.ApplyPaymentInput{
		PlanID:              planID,
		Amount:              req.Monto,
		Method:              domain.PaymentMethod(req.Metodo),
		Reference:           req.Referencia,
		TargetInstallmentID: req.CuotaDestino,
	}
	if req.FechaPago != "" {
		d, err := parseDate(req.FechaPago)
		if err != nil {
			ErrorBadRequest(w, "fecha_pago: expected YYYY-MM-DD")
			return
		}
		in.PaymentDate = d
	}

	receipt, err := h.payments.ApplyPayment(r.Context(), tenantID, userID, in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "Pago aplicado", map[string]interface{}{
		"payment":         toPaymentDTO(receipt.Payment),
		"installments":    toInstallmentDTOs(receipt.Touched),
		"total_pendiente": receipt.TotalPending.StringFixed(2),
	})
}
