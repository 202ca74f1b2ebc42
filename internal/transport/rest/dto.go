package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"inmo-payments/internal/domain"
)

const dateLayout = "2006-01-02"

type planDTO struct {
	ID             int64  `json:"id"`
	SaleID         int64  `json:"sale_id"`
	TipoPlan       string `json:"tipo_plan"`
	TipoPlanLabel  string `json:"tipo_plan_label"`
	FrecuenciaDias int    `json:"frecuencia_dias"`

	MontoTotal       string `json:"monto_total"`
	Enganche         string `json:"enganche"`
	MontoFinanciado  string `json:"monto_financiado"`
	TasaInteresAnual string `json:"tasa_interes_anual"`
	AplicaInteres    bool   `json:"aplica_interes"`
	NumeroPagos      int    `json:"numero_pagos"`
	TasaMoraMensual  string `json:"tasa_mora_mensual"`
	DiasGracia       int    `json:"dias_gracia"`

	FechaInicio     string  `json:"fecha_inicio"`
	FechaPrimerPago string  `json:"fecha_primer_pago"`
	FechaUltimoPago string  `json:"fecha_ultimo_pago"`
	Notes           *string `json:"notes,omitempty"`
}

func toPlanDTO(p *domain.PaymentPlan) planDTO {
	return planDTO{
		ID:               p.ID,
		SaleID:           p.SaleID,
		TipoPlan:         string(p.PlanType),
		TipoPlanLabel:    p.PlanType.Description(),
		FrecuenciaDias:   p.FrequencyDays,
		MontoTotal:       p.TotalAmount.StringFixed(2),
		Enganche:         p.DownPayment.StringFixed(2),
		MontoFinanciado:  p.FinancedAmount.StringFixed(2),
		TasaInteresAnual: p.AnnualRate.StringFixed(2),
		AplicaInteres:    p.AppliesInterest,
		NumeroPagos:      p.InstallmentCount,
		TasaMoraMensual:  p.LateRateMonthly.StringFixed(2),
		DiasGracia:       p.GraceDays,
		FechaInicio:      p.StartDate.Format(dateLayout),
		FechaPrimerPago:  p.FirstDueDate.Format(dateLayout),
		FechaUltimoPago:  p.LastDueDate.Format(dateLayout),
		Notes:            p.Notes,
	}
}

type installmentDTO struct {
	ID             int64   `json:"id"`
	Numero         int     `json:"numero"`
	Vencimiento    string  `json:"fecha_vencimiento"`
	Capital        string  `json:"capital"`
	Interes        string  `json:"interes"`
	Total          string  `json:"total"`
	MontoPagado    string  `json:"monto_pagado"`
	MontoPendiente string  `json:"monto_pendiente"`
	MoraAcumulada  string  `json:"mora_acumulada"`
	DiasAtraso     int     `json:"dias_atraso"`
	FechaPago      *string `json:"fecha_pago,omitempty"`
	Estado         string  `json:"estado"`
	EstadoLabel    string  `json:"estado_label"`
	SaldoRestante  string  `json:"saldo_restante"`
}

func toInstallmentDTO(inst domain.Installment) installmentDTO {
	dto := installmentDTO{
		ID:             inst.ID,
		Numero:         inst.SequenceNumber,
		Vencimiento:    inst.DueDate.Format(dateLayout),
		Capital:        inst.Capital.StringFixed(2),
		Interes:        inst.Interest.StringFixed(2),
		Total:          inst.TotalDue.StringFixed(2),
		MontoPagado:    inst.PaidAmount.StringFixed(2),
		MontoPendiente: inst.PendingAmount.StringFixed(2),
		MoraAcumulada:  inst.AccruedLateFee.StringFixed(2),
		DiasAtraso:     inst.DaysLate,
		Estado:         string(inst.Status),
		EstadoLabel:    inst.Status.Description(),
		SaldoRestante:  inst.RemainingPrincipalAfter.StringFixed(2),
	}
	if inst.PaidDate != nil {
		paid := inst.PaidDate.Format(dateLayout)
		dto.FechaPago = &paid
	}
	return dto
}

func toInstallmentDTOs(installments []domain.Installment) []installmentDTO {
	out := make([]installmentDTO, 0, len(installments))
	for _, inst := range installments {
		out = append(out, toInstallmentDTO(inst))
	}
	return out
}

type allocationDTO struct {
	InstallmentID int64  `json:"installment_id"`
	Numero        int    `json:"numero"`
	Mora          string `json:"mora"`
	Interes       string `json:"interes"`
	Capital       string `json:"capital"`
}

type paymentDTO struct {
	ID          int64  `json:"id"`
	PlanID      int64  `json:"plan_id"`
	Monto       string `json:"monto"`
	FechaPago   string `json:"fecha_pago"`
	Metodo      string `json:"metodo"`
	Referencia  string `json:"referencia"`
	MoraPagada  string `json:"mora_pagada"`
	InteresPago string `json:"interes_pagado"`
	CapitalPago string `json:"capital_pagado"`

	Allocations []allocationDTO `json:"aplicaciones"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	dto := paymentDTO{
		ID:          p.ID,
		PlanID:      p.PlanID,
		Monto:       p.Amount.StringFixed(2),
		FechaPago:   p.PaymentDate.Format(dateLayout),
		Metodo:      string(p.Method),
		Referencia:  p.Reference,
		MoraPagada:  p.AllocatedLateFee.StringFixed(2),
		InteresPago: p.AllocatedInterest.StringFixed(2),
		CapitalPago: p.AllocatedCapital.StringFixed(2),
		Allocations: []allocationDTO{},
	}
	for _, a := range p.Allocations {
		dto.Allocations = append(dto.Allocations, allocationDTO{
			InstallmentID: a.InstallmentID,
			Numero:        a.SequenceNumber,
			Mora:          a.LateFee.StringFixed(2),
			Interes:       a.Interest.StringFixed(2),
			Capital:       a.Capital.StringFixed(2),
		})
	}
	return dto
}

func planIDFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "planID"), 10, 64)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
