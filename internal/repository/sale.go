package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inmo-payments/internal/domain"
)

// SaleRepository reads the collaborator records the engine consumes but never
// mutates: the sale a plan belongs to and the client/lot display fields
// statements show.
type SaleRepository struct {
	db *sql.DB
}

func NewSaleRepository(db *sql.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

func (r *SaleRepository) GetByID(ctx context.Context, tenantID string, saleID int64) (*domain.Sale, error) {
	var s domain.Sale
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, client_id, lot_id, price FROM sales WHERE tenant_id = $1 AND id = $2`,
		tenantID, saleID,
	).Scan(&s.ID, &s.TenantID, &s.ClientID, &s.LotID, &s.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("sale", saleID)
	}
	if err != nil {
		return nil, fmt.Errorf("get sale %d: %w", saleID, err)
	}
	return &s, nil
}

func (r *SaleRepository) GetClient(ctx context.Context, tenantID string, clientID int64) (*domain.Client, error) {
	var c domain.Client
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, document FROM clients WHERE tenant_id = $1 AND id = $2`,
		tenantID, clientID,
	).Scan(&c.ID, &c.FullName, &c.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("client", clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", clientID, err)
	}
	return &c, nil
}

func (r *SaleRepository) GetLot(ctx context.Context, tenantID string, lotID int64) (*domain.Lot, error) {
	var l domain.Lot
	err := r.db.QueryRowContext(ctx, `
		SELECT l.id, l.code, pr.name
		FROM lots l
		JOIN projects pr ON pr.id = l.project_id
		WHERE l.tenant_id = $1 AND l.id = $2`,
		tenantID, lotID,
	).Scan(&l.ID, &l.Code, &l.ProjectName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("lot", lotID)
	}
	if err != nil {
		return nil, fmt.Errorf("get lot %d: %w", lotID, err)
	}
	return &l, nil
}
