/*
Copyright 2024 Pitchroom Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dealflow

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/internal/apierror"
	"github.com/pitchroom/dealflow/model"
)

func validateNewDeal(deal *model.ProductionDeal) error {
	return validation.ValidateStruct(deal,
		validation.Field(&deal.ProductionCompanyID, validation.Required),
		validation.Field(&deal.ProductionCompanyUserID, validation.Required),
		validation.Field(&deal.CreatorID, validation.Required),
		validation.Field(&deal.PitchID, validation.Required),
		validation.Field(&deal.InterestType, validation.Required,
			validation.In(model.InterestOption, model.InterestPurchase, model.InterestCoProduction, model.InterestDistribution)),
	)
}

// ExpressInterest opens a production deal against a pitch. The company
// is verified once, up front; a verified company below its deal
// capacity then races for the pitch's exclusivity window. Winning the
// race suspends the deal for the creator's response, losing it parks
// the deal on the pitch's waitlist.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - deal *model.ProductionDeal: The interest expression to record.
//
// Returns:
// - *model.ProductionDeal: The persisted deal in its first resting state.
// - error: An error if validation, verification or persistence fails.
func (d *Dealflow) ExpressInterest(ctx context.Context, deal *model.ProductionDeal) (*model.ProductionDeal, error) {
	ctx, span := tracer.Start(ctx, "ExpressInterest")
	defer span.End()

	if err := validateNewDeal(deal); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid interest expression", err.Error())
	}
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	deal.DealID = model.GenerateUUIDWithSuffix("deal")
	deal.WorkflowInstanceID = model.GenerateUUIDWithSuffix("wfl")
	deal.Status = model.StatusInterest

	// Persisting first makes every later step resumable: the deal row
	// is the saga's durable state.
	deal, err = d.datasource.RecordDeal(ctx, deal)
	if err != nil {
		return nil, logAndRecordError(span, "recording deal failed: ", err)
	}

	result, err := d.verifier.VerifyCompany(ctx, deal.ProductionCompanyID)
	if err != nil {
		// The row already exists; closing it keeps a failed check from
		// stranding a non-terminal deal with no deadline and no resume
		// path. A retry opens a fresh deal.
		logAndRecordError(span, "company verification failed: ", err)
		if termErr := d.terminate(ctx, deal, model.StatusRejected, "Company verification could not be completed", model.OutcomeRejected); termErr != nil {
			return nil, termErr
		}
		return nil, err
	}
	if !result.Verified {
		if err := d.terminate(ctx, deal, model.StatusRejected, "Production company failed verification", model.OutcomeRejected); err != nil {
			return nil, err
		}
		return deal, nil
	}
	if !clearedVerification(result, conf.Verification.CapacityThreshold) {
		if err := d.terminate(ctx, deal, model.StatusRejected,
			fmt.Sprintf("Production company is at its capacity of %d active deals", conf.Verification.CapacityThreshold),
			model.OutcomeRejected); err != nil {
			return nil, err
		}
		return deal, nil
	}

	expiresAt, err := d.tryAcquireExclusivity(ctx, deal)
	if err != nil {
		logAndRecordError(span, "acquiring exclusivity failed: ", err)
		if termErr := d.terminate(ctx, deal, model.StatusRejected, "Interest could not be opened for negotiation", model.OutcomeRejected); termErr != nil {
			return nil, termErr
		}
		return nil, err
	}
	if expiresAt == nil {
		logrus.Infof("pitch %s is exclusively held, waitlisting deal %s", deal.PitchID, deal.DealID)
		if err := d.enqueueWaitlisted(ctx, deal); err != nil {
			return nil, err
		}
		return deal, nil
	}

	deal.ExclusivityExpiresAt = expiresAt
	if err := d.suspend(ctx, deal, model.StatusAwaitingCreatorResponse, model.EventCreatorResponse,
		negotiationWindow(conf.Negotiation.CreatorResponseDays)); err != nil {
		return nil, err
	}
	return deal, nil
}

// GetDeal retrieves a deal by its ID.
func (d *Dealflow) GetDeal(ctx context.Context, dealID string) (*model.ProductionDeal, error) {
	return d.datasource.GetDeal(ctx, dealID)
}

// GetDealsByPitch retrieves every deal, open or closed, recorded
// against a pitch.
func (d *Dealflow) GetDealsByPitch(ctx context.Context, pitchID string) ([]*model.ProductionDeal, error) {
	return d.datasource.GetDealsByPitch(ctx, pitchID)
}
