package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pitchroom/dealflow/internal/apierror"
	"github.com/pitchroom/dealflow/model"
)

const dealColumns = `
	deal_id, workflow_instance_id, production_company_id, production_company_user_id,
	creator_id, pitch_id, interest_type, message, proposed_budget, proposed_timeline,
	nda_id, status, awaiting_event, stage_deadline, follow_up_count,
	exclusivity_expires_at, proposal_document_key, terms, counter_terms,
	contract_document_key, signed_at, activated_at, completed_at,
	reason, outcome_code, meta_data, created_at, updated_at`

// RecordDeal persists a new deal. The write is an upsert keyed by
// deal_id so a crash-retried creation step lands on the same row
// instead of failing or duplicating.
func (d Datasource) RecordDeal(ctx context.Context, deal *model.ProductionDeal) (*model.ProductionDeal, error) {
	termsJSON, counterJSON, metaDataJSON, err := marshalDealJSON(deal)
	if err != nil {
		return nil, err
	}

	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now()
	}
	deal.UpdatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO production_deals (
			deal_id, workflow_instance_id, production_company_id, production_company_user_id,
			creator_id, pitch_id, interest_type, message, proposed_budget, proposed_timeline,
			nda_id, status, awaiting_event, stage_deadline, follow_up_count,
			exclusivity_expires_at, proposal_document_key, terms, counter_terms,
			contract_document_key, signed_at, activated_at, completed_at,
			reason, outcome_code, meta_data, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
		ON CONFLICT (deal_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`, deal.DealID, deal.WorkflowInstanceID, deal.ProductionCompanyID, deal.ProductionCompanyUserID,
		deal.CreatorID, deal.PitchID, string(deal.InterestType), deal.Message, deal.ProposedBudget, deal.ProposedTimeline,
		deal.NDAID, string(deal.Status), deal.AwaitingEvent, deal.StageDeadline, deal.FollowUpCount,
		deal.ExclusivityExpiresAt, deal.ProposalDocumentKey, termsJSON, counterJSON,
		deal.ContractDocumentKey, deal.SignedAt, deal.ActivatedAt, deal.CompletedAt,
		deal.Reason, deal.OutcomeCode, metaDataJSON, deal.CreatedAt, deal.UpdatedAt)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Deal references an unknown record", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record deal", err)
	}

	return deal, nil
}

// GetDeal retrieves a deal by its deal_id.
func (d Datasource) GetDeal(ctx context.Context, id string) (*model.ProductionDeal, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+dealColumns+`
		FROM production_deals
		WHERE deal_id = $1
	`, id)

	deal, err := scanDeal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Deal not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve deal", err)
	}
	return deal, nil
}

// UpdateDeal writes all mutable columns of a deal. The deal row has a
// single writer (its orchestrator instance), so a full-column update
// cannot clobber concurrent changes.
func (d Datasource) UpdateDeal(ctx context.Context, deal *model.ProductionDeal) error {
	termsJSON, counterJSON, metaDataJSON, err := marshalDealJSON(deal)
	if err != nil {
		return err
	}

	deal.UpdatedAt = time.Now()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE production_deals
		SET status = $2, awaiting_event = $3, stage_deadline = $4, follow_up_count = $5,
			exclusivity_expires_at = $6, proposal_document_key = $7, terms = $8,
			counter_terms = $9, contract_document_key = $10, signed_at = $11,
			activated_at = $12, completed_at = $13, reason = $14, outcome_code = $15,
			meta_data = $16, updated_at = $17
		WHERE deal_id = $1
	`, deal.DealID, string(deal.Status), deal.AwaitingEvent, deal.StageDeadline, deal.FollowUpCount,
		deal.ExclusivityExpiresAt, deal.ProposalDocumentKey, termsJSON,
		counterJSON, deal.ContractDocumentKey, deal.SignedAt,
		deal.ActivatedAt, deal.CompletedAt, deal.Reason, deal.OutcomeCode,
		metaDataJSON, deal.UpdatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update deal", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update deal", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Deal not found", nil)
	}
	return nil
}

// GetDealsByPitch retrieves every negotiation attempt against a pitch,
// oldest first.
func (d Datasource) GetDealsByPitch(ctx context.Context, pitchID string) ([]*model.ProductionDeal, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+dealColumns+`
		FROM production_deals
		WHERE pitch_id = $1
		ORDER BY created_at
	`, pitchID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve deals", err)
	}
	defer rows.Close()

	deals := []*model.ProductionDeal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan deal data", err)
		}
		deals = append(deals, deal)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over deals", err)
	}
	return deals, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row rowScanner) (*model.ProductionDeal, error) {
	deal := model.ProductionDeal{}
	var (
		interestType, status                       string
		stageDeadline, exclusivityExpiresAt        sql.NullTime
		signedAt, activatedAt, completedAt         sql.NullTime
		termsJSON, counterJSON, metaDataJSON       []byte
	)

	err := row.Scan(
		&deal.DealID, &deal.WorkflowInstanceID, &deal.ProductionCompanyID, &deal.ProductionCompanyUserID,
		&deal.CreatorID, &deal.PitchID, &interestType, &deal.Message, &deal.ProposedBudget, &deal.ProposedTimeline,
		&deal.NDAID, &status, &deal.AwaitingEvent, &stageDeadline, &deal.FollowUpCount,
		&exclusivityExpiresAt, &deal.ProposalDocumentKey, &termsJSON, &counterJSON,
		&deal.ContractDocumentKey, &signedAt, &activatedAt, &completedAt,
		&deal.Reason, &deal.OutcomeCode, &metaDataJSON, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	deal.InterestType = model.InterestType(interestType)
	deal.Status = model.DealStatus(status)
	deal.StageDeadline = nullTimePtr(stageDeadline)
	deal.ExclusivityExpiresAt = nullTimePtr(exclusivityExpiresAt)
	deal.SignedAt = nullTimePtr(signedAt)
	deal.ActivatedAt = nullTimePtr(activatedAt)
	deal.CompletedAt = nullTimePtr(completedAt)

	if len(termsJSON) > 0 {
		if err := json.Unmarshal(termsJSON, &deal.Terms); err != nil {
			return nil, err
		}
	}
	if len(counterJSON) > 0 {
		if err := json.Unmarshal(counterJSON, &deal.CounterTerms); err != nil {
			return nil, err
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &deal.MetaData); err != nil {
			return nil, err
		}
	}
	return &deal, nil
}

func marshalDealJSON(deal *model.ProductionDeal) ([]byte, []byte, []byte, error) {
	var termsJSON, counterJSON, metaDataJSON []byte
	var err error

	if deal.Terms != nil {
		termsJSON, err = json.Marshal(deal.Terms)
		if err != nil {
			return nil, nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal terms", err)
		}
	}
	if deal.CounterTerms != nil {
		counterJSON, err = json.Marshal(deal.CounterTerms)
		if err != nil {
			return nil, nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal counter terms", err)
		}
	}
	if deal.MetaData != nil {
		metaDataJSON, err = json.Marshal(deal.MetaData)
		if err != nil {
			return nil, nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
		}
	}
	return termsJSON, counterJSON, metaDataJSON, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
