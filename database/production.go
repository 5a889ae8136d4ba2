package database

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pitchroom/dealflow/internal/apierror"
	"github.com/pitchroom/dealflow/model"
)

// CreateProduction records the production-tracking row created when a
// deal activates. The unique constraint on deal_id makes a crash-retried
// activation step safe.
func (d Datasource) CreateProduction(ctx context.Context, prod *model.Production) error {
	if prod.StartedAt.IsZero() {
		prod.StartedAt = time.Now()
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO productions (production_id, deal_id, pitch_id, production_company_id, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (deal_id) DO NOTHING
	`, prod.ProductionID, prod.DealID, prod.PitchID, prod.ProductionCompanyID, prod.StartedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "foreign_key_violation" {
			return apierror.NewAPIError(apierror.ErrBadRequest, "Production references an unknown deal", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create production record", err)
	}
	return nil
}

// UpsertPitchOwnership points the pitch's ownership record at the deal
// that executed a contract for it.
func (d Datasource) UpsertPitchOwnership(ctx context.Context, pitchID, dealID, companyID string, acquiredAt time.Time) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO pitch_ownership (pitch_id, deal_id, production_company_id, acquired_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pitch_id) DO UPDATE
		SET deal_id = EXCLUDED.deal_id,
			production_company_id = EXCLUDED.production_company_id,
			acquired_at = EXCLUDED.acquired_at
	`, pitchID, dealID, companyID, acquiredAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update pitch ownership", err)
	}
	return nil
}
