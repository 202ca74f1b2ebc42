package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"inmo-payments/internal/domain"
	"inmo-payments/internal/service"
)

type PlanManager interface {
	CreatePlan(ctx context.Context, tenantID string, in service.CreatePlanInput) (*service.PlanSummary, error)
	GetSchedule(ctx context.Context, tenantID string, planID int64) ([]domain.Installment, error)
	UpdateAdministrative(ctx context.Context, tenantID string, planID int64, in service.AdminUpdateInput) error
	Archive(ctx context.Context, tenantID string, planID int64) error
}

type PaymentApplier interface {
	ApplyPayment(ctx context.Context, tenantID string, userID int64, in service.ApplyPaymentInput) (*service.PaymentReceipt, error)
}

type StatementProvider interface {
	GetAccountStatement(ctx context.Context, tenantID string, planID int64) (*service.Statement, error)
}

type ScheduleExporter interface {
	StartScheduleExport(ctx context.Context, tenantID string, userID int64, planID int64) (string, error)
	GetExports(ctx context.Context, tenantID string, userID int64) ([]service.ExportStatus, error)
	GetExport(ctx context.Context, tenantID string, userID int64, exportID string) (*service.ExportStatus, error)
}

type Handler struct {
	plans      PlanManager
	payments   PaymentApplier
	statements StatementProvider
	exports    ScheduleExporter
}

func NewHandler(plans PlanManager, payments PaymentApplier, statements StatementProvider, exports ScheduleExporter) *Handler {
	return &Handler{
		plans:      plans,
		payments:   payments,
		statements: statements,
		exports:    exports,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/plans", func(r chi.Router) {
		r.Post("/", h.createPlan)
		r.Route("/{planID}", func(r chi.Router) {
			r.Patch("/", h.updatePlan)
			r.Delete("/", h.archivePlan)
			r.Get("/schedule", h.getSchedule)
			r.Get("/statement", h.getStatement)
			r.Post("/payments", h.applyPayment)
			r.Post("/export", h.exportSchedule)
		})
	})

	r.Get("/export", h.getExports)
	r.Get("/export/{exportID}", h.getExport)

	return r
}
