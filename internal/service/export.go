package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"inmo-payments/internal/clients"
	"inmo-payments/internal/domain"
)

const (
	exportTTL    = 30 * time.Minute
	exportSetKey = "export_ids"
)

// ExportStatus tracks one schedule export through its lifecycle in Redis.
type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	TenantID string    `json:"tenant_id"`
	UserID   int64     `json:"user_id"`
	PlanID   int64     `json:"plan_id"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

// scheduleColumn maps one spreadsheet column to an installment field.
type scheduleColumn struct {
	Header string
	Value  func(inst domain.Installment) any
}

var scheduleColumns = []scheduleColumn{
	{Header: "Cuota", Value: func(i domain.Installment) any { return i.SequenceNumber }},
	{Header: "Vencimiento", Value: func(i domain.Installment) any { return i.DueDate.Format("2006-01-02") }},
	{Header: "Capital", Value: func(i domain.Installment) any { return i.Capital.StringFixed(2) }},
	{Header: "Interés", Value: func(i domain.Installment) any { return i.Interest.StringFixed(2) }},
	{Header: "Total", Value: func(i domain.Installment) any { return i.TotalDue.StringFixed(2) }},
	{Header: "Pagado", Value: func(i domain.Installment) any { return i.PaidAmount.StringFixed(2) }},
	{Header: "Pendiente", Value: func(i domain.Installment) any { return i.PendingAmount.StringFixed(2) }},
	{Header: "Mora", Value: func(i domain.Installment) any { return i.AccruedLateFee.StringFixed(2) }},
	{Header: "Saldo", Value: func(i domain.Installment) any { return i.RemainingPrincipalAfter.StringFixed(2) }},
	{Header: "Estado", Value: func(i domain.Installment) any { return i.Status.Description() }},
}

// ExportStorage is where finished spreadsheets land. Local disk and the S3
// client both satisfy it.
type ExportStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	GetURL(fileName string) string
}

type ExportService struct {
	plans   PlanReader
	sales   DisplayReader
	redis   *clients.RedisClient
	storage ExportStorage
	ws      *clients.NotificationClient
	log     *logrus.Logger
}

func NewExportService(
	plans PlanReader,
	sales DisplayReader,
	redis *clients.RedisClient,
	storage ExportStorage,
	ws *clients.NotificationClient,
	log *logrus.Logger,
) *ExportService {
	return &ExportService{plans: plans, sales: sales, redis: redis, storage: storage, ws: ws, log: log}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

// StartScheduleExport verifies the plan and kicks off an async XLSX render of
// its amortization table. The caller polls the returned export ID or listens
// on the websocket channel.
func (s *ExportService) StartScheduleExport(ctx context.Context, tenantID string, userID int64, planID int64) (string, error) {
	if _, err := s.plans.GetByID(ctx, tenantID, planID, false); err != nil {
		return "", err
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	status := &ExportStatus{
		Key:      exportID,
		Type:     "schedule",
		TenantID: tenantID,
		UserID:   userID,
		PlanID:   planID,
		Progress: 0,
		Created:  time.Now(),
	}
	_ = s.saveStatus(ctx, status)

	go s.runScheduleExport(context.Background(), status)

	return exportID, nil
}

func (s *ExportService) runScheduleExport(ctx context.Context, status *ExportStatus) {
	fail := func(err error) {
		errStr := err.Error()
		s.log.WithError(err).WithField("export", status.Key).Error("schedule export failed")
		status.Error = &errStr
		status.Progress = 100
		_ = s.saveStatus(ctx, status)
		if s.ws != nil {
			_ = s.ws.NotifyExportFailed(ctx, status.UserID, status.Key, errStr)
		}
	}

	plan, err := s.plans.GetByID(ctx, status.TenantID, status.PlanID, true)
	if err != nil {
		fail(err)
		return
	}
	installments, err := s.plans.ListInstallments(ctx, status.PlanID)
	if err != nil {
		fail(err)
		return
	}

	f := excelize.NewFile()
	sheet := "Plan de pagos"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", status.UserID)})

	// Header block: who and what the plan belongs to, when available.
	title := fmt.Sprintf("Plan %d — %s", plan.ID, plan.PlanType.Description())
	if s.sales != nil {
		if sale, err := s.sales.GetByID(ctx, status.TenantID, plan.SaleID); err == nil {
			if client, err := s.sales.GetClient(ctx, status.TenantID, sale.ClientID); err == nil {
				title += " — " + client.FullName
			}
			if lot, err := s.sales.GetLot(ctx, status.TenantID, sale.LotID); err == nil {
				title += fmt.Sprintf(" (%s, lote %s)", lot.ProjectName, lot.Code)
			}
		}
	}
	_ = f.SetCellValue(sheet, "A1", title)

	const headerRow = 3
	for i, col := range scheduleColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(installments)
	for i, inst := range installments {
		for colIdx, col := range scheduleColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, headerRow+1+i)
			_ = f.SetCellValue(sheet, cell, col.Value(inst))
		}

		if (i+1)%50 == 0 || i == total-1 {
			progress := math.Round(float64(i+1) / float64(total) * 100.0)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = s.saveStatus(ctx, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, status.UserID, status.Key, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		fail(err)
		return
	}

	fileName := fmt.Sprintf("plan_%d_%s.xlsx", plan.ID, time.Now().Format("20060102_150405"))

	savedName, err := s.storage.Save(ctx, fileName, buf.Bytes())
	if err != nil {
		fail(fmt.Errorf("save export: %w", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, status.UserID, status.Key, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, status.UserID, status.Key, url, fileName)
	}
}

// GetExports lists the caller's exports, newest first.
func (s *ExportService) GetExports(ctx context.Context, tenantID string, userID int64) ([]ExportStatus, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status ExportStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.TenantID == tenantID && status.UserID == userID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})
	return statuses, nil
}

// GetExport returns one export status, scoped to the caller.
func (s *ExportService) GetExport(ctx context.Context, tenantID string, userID int64, exportID string) (*ExportStatus, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, &domain.NotFoundError{Entity: "export"}
	}

	var status ExportStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	if status.TenantID != tenantID || status.UserID != userID {
		return nil, &domain.NotFoundError{Entity: "export"}
	}
	return &status, nil
}
