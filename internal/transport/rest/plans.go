package rest

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"inmo-payments/internal/domain"
	"inmo-payments/internal/service"
	"inmo-payments/internal/transport/auth"
)

type createPlanRequest struct {
	SaleID           int64           `json:"sale_id"`
	TipoPlan         string          `json:"tipo_plan"`
	FrecuenciaDias   int             `json:"frecuencia_dias"`
	MontoTotal       decimal.Decimal `json:"monto_total"`
	Enganche         decimal.Decimal `json:"enganche"`
	TasaInteresAnual decimal.Decimal `json:"tasa_interes_anual"`
	AplicaInteres    bool            `json:"aplica_interes"`
	NumeroPagos      int             `json:"numero_pagos"`
	TasaMoraMensual  decimal.Decimal `json:"tasa_mora_mensual"`
	DiasGracia       int             `json:"dias_gracia"`
	FechaInicio      string          `json:"fecha_inicio"`
	FechaPrimerPago  string          `json:"fecha_primer_pago"`
	Notes            *string         `json:"notes"`
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.GetTenantID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	in := service.CreatePlanInput{
		SaleID:           req.SaleID,
		PlanType:         domain.PlanType(req.TipoPlan),
		FrequencyDays:    req.FrecuenciaDias,
		MontoTotal:       req.MontoTotal,
		Enganche:         req.Enganche,
		TasaInteresAnual: req.TasaInteresAnual,
		AplicaInteres:    req.AplicaInteres,
		NumeroPagos:      req.NumeroPagos,
		TasaMoraMensual:  req.TasaMoraMensual,
		DiasGracia:       req.DiasGracia,
		Notes:            req.Notes,
	}
	if req.FechaInicio != "" {
		d, err := parseDate(req.FechaInicio)
		if err != nil {
			ErrorBadRequest(w, "fecha_inicio: expected YYYY-MM-DD")
			return
		}
		in.FechaInicio = d
	}
	if req.FechaPrimerPago != "" {
		d, err := parseDate(req.FechaPrimerPago)
		if err != nil {
			ErrorBadRequest(w, "fecha_primer_pago: expected YYYY-MM-DD")
			return
		}
		in.FechaPrimerPago = d
	}

	summary, err := h.plans.CreatePlan(r.Context(), tenantID, in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	SuccessCreated(w, "Plan de pagos creado", map[string]interface{}{
		"plan":     toPlanDTO(summary.Plan),
		"schedule": toInstallmentDTOs(summary.Installments),
	})
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
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

	installments, err := h.plans.GetSchedule(r.Context(), tenantID, planID)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Plan de pagos", map[string]interface{}{
		"plan_id":  planID,
		"schedule": toInstallmentDTOs(installments),
	})
}

type updatePlanRequest struct {
	TasaMoraMensual *decimal.Decimal `json:"tasa_mora_mensual"`
	DiasGracia      *int             `json:"dias_gracia"`
	Notes           *string          `json:"notes"`
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
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

	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorBadRequest(w, "invalid JSON")
		return
	}

	in := service.AdminUpdateInput{
		TasaMoraMensual: req.TasaMoraMensual,
		DiasGracia:      req.DiasGracia,
		Notes:           req.Notes,
	}
	if err := h.plans.UpdateAdministrative(r.Context(), tenantID, planID, in); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Plan actualizado", map[string]interface{}{"plan_id": planID})
}

func (h *Handler) archivePlan(w http.ResponseWriter, r *http.Request) {
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

	if err := h.plans.Archive(r.Context(), tenantID, planID); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	Success(w, "Plan archivado", map[string]interface{}{"plan_id": planID})
}
