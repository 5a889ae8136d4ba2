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
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/documents"
	"github.com/pitchroom/dealflow/internal/apierror"
	"github.com/pitchroom/dealflow/internal/notification"
	"github.com/pitchroom/dealflow/model"
)

var (
	tracer = otel.Tracer("deal.orchestrator")
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// negotiationWindow converts a configured day count into a deadline from now.
func negotiationWindow(days int) time.Time {
	return time.Now().Add(time.Duration(days) * 24 * time.Hour)
}

// suspend parks the deal at a new stage awaiting one event type, with a
// durable deadline that fires if the event never arrives. Any deadline
// still pending from a previous visit to the same stage is replaced, so
// a deal re-entering a stage gets a fresh window instead of inheriting
// a stale timer.
func (d *Dealflow) suspend(ctx context.Context, deal *model.ProductionDeal, status model.DealStatus, awaiting string, deadline time.Time) error {
	deal.Status = status
	deal.AwaitingEvent = awaiting
	deal.StageDeadline = &deadline

	if err := d.datasource.UpdateDeal(ctx, deal); err != nil {
		return err
	}
	if err := d.queue.rescheduleStageDeadline(deal.DealID, awaiting, deadline); err != nil {
		return err
	}
	d.postDealActions(ctx, deal)
	return nil
}

// terminate closes the deal with a terminal status, reason and outcome
// code. Terminal deals never transition again; redelivered events and
// late deadline firings bounce off the status check.
func (d *Dealflow) terminate(ctx context.Context, deal *model.ProductionDeal, status model.DealStatus, reason, outcome string) error {
	deal.Status = status
	deal.AwaitingEvent = ""
	deal.StageDeadline = nil
	deal.Reason = reason
	deal.OutcomeCode = outcome

	if err := d.datasource.UpdateDeal(ctx, deal); err != nil {
		return err
	}
	logrus.Infof("deal %s closed: %s (%s)", deal.DealID, status, reason)
	d.postDealActions(ctx, deal)
	return nil
}

// closeWithRelease runs the compensating exclusivity release before
// closing a lock-holding deal. The release also promotes the waitlist
// head, so a closed deal always hands the pitch on.
func (d *Dealflow) closeWithRelease(ctx context.Context, deal *model.ProductionDeal, status model.DealStatus, reason, outcome string) error {
	if err := d.releaseExclusivity(ctx, deal); err != nil {
		return err
	}
	return d.terminate(ctx, deal, status, reason, outcome)
}

// HandleEvent delivers an external event to a suspended deal. The event
// must match the deal's current suspend point; anything else, including
// a redelivery of an already-consumed event, is rejected with a
// conflict so the caller knows nothing changed.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - dealID string: The deal the event addresses.
// - event *model.DealEvent: The typed event envelope.
//
// Returns:
// - *model.ProductionDeal: The deal after the transition.
// - error: An error if the event is invalid for the deal's state.
func (d *Dealflow) HandleEvent(ctx context.Context, dealID string, event *model.DealEvent) (*model.ProductionDeal, error) {
	ctx, span := tracer.Start(ctx, "HandleDealEvent")
	defer span.End()

	if !model.KnownEventType(event.Type) {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("unknown event type: %s", event.Type), nil)
	}

	deal, err := d.datasource.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status.Terminal() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("deal %s is closed", dealID), deal.Status)
	}

	// Withdrawal is accepted at any non-terminal stage.
	if event.Type == model.EventDealWithdrawn {
		return deal, d.withdraw(ctx, deal)
	}

	if deal.AwaitingEvent != event.Type {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("deal %s is awaiting %s, not %s", dealID, deal.AwaitingEvent, event.Type), nil)
	}

	switch event.Type {
	case model.EventCreatorResponse:
		var payload model.CreatorResponse
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyCreatorResponse(ctx, deal, &payload)
	case model.EventMeetingOutcome:
		var payload model.MeetingOutcome
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyMeetingOutcome(ctx, deal, &payload)
	case model.EventProposalSubmission:
		var payload model.ProposalSubmission
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyProposalSubmission(ctx, deal, &payload)
	case model.EventReviewDecision:
		var payload model.ReviewDecision
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyReviewDecision(ctx, deal, &payload)
	case model.EventCounterResponse:
		var payload model.CounterResponse
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyCounterResponse(ctx, deal, &payload)
	case model.EventContractSigned:
		var payload model.ContractSigned
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyContractSigned(ctx, deal, &payload)
	case model.EventProductionComplete:
		var payload model.ProductionComplete
		if err := decodeEvent(event, &payload); err != nil {
			return nil, err
		}
		err = d.applyProductionComplete(ctx, deal, &payload)
	case model.EventWaitlistActivated:
		err = d.applyWaitlistActivation(ctx, deal, time.Time{})
	}
	if err != nil {
		return nil, logAndRecordError(span, fmt.Sprintf("applying %s to deal %s failed: ", event.Type, dealID), err)
	}
	return deal, nil
}

// decodeEvent unmarshals and validates an event payload against the
// closed payload type for its suspend point.
func decodeEvent(event *model.DealEvent, payload interface{ Validate() error }) error {
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("malformed %s payload", event.Type), err.Error())
	}
	if err := payload.Validate(); err != nil {
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid %s payload", event.Type), err.Error())
	}
	return nil
}

func (d *Dealflow) applyCreatorResponse(ctx context.Context, deal *model.ProductionDeal, payload *model.CreatorResponse) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	switch payload.Decision {
	case model.CreatorInterested:
		return d.suspend(ctx, deal, model.StatusMeetingScheduled, model.EventMeetingOutcome,
			negotiationWindow(conf.Negotiation.MeetingOutcomeDays))
	case model.CreatorNotInterested:
		return d.closeWithRelease(ctx, deal, model.StatusRejected, "Creator declined the interest", model.OutcomeRejected)
	case model.CreatorWaitlist:
		// The creator wants to keep talking to whoever currently holds
		// the pitch. This deal gives its window back and queues behind it.
		if err := d.releaseExclusivity(ctx, deal); err != nil {
			return err
		}
		return d.enqueueWaitlisted(ctx, deal)
	}
	return nil
}

func (d *Dealflow) applyMeetingOutcome(ctx context.Context, deal *model.ProductionDeal, payload *model.MeetingOutcome) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	switch payload.Outcome {
	case model.MeetingProceed:
		return d.suspend(ctx, deal, model.StatusAwaitingProposal, model.EventProposalSubmission,
			negotiationWindow(conf.Negotiation.ProposalDays))
	case model.MeetingPass:
		return d.closeWithRelease(ctx, deal, model.StatusRejected, "Production company passed after the meeting", model.OutcomeRejected)
	case model.MeetingNeedMoreInfo:
		// One follow-up meeting is allowed; an undecided second meeting
		// closes the deal rather than hold the pitch indefinitely.
		if deal.FollowUpCount >= 1 {
			return d.closeWithRelease(ctx, deal, model.StatusRejected, "No decision after the follow-up meeting", model.OutcomeRejected)
		}
		deal.FollowUpCount++
		deadline := payload.NextMeetingDate.Add(time.Duration(conf.Negotiation.MeetingOutcomeDays) * 24 * time.Hour)
		return d.suspend(ctx, deal, model.StatusMeetingScheduled, model.EventMeetingOutcome, deadline)
	}
	return nil
}

func (d *Dealflow) applyProposalSubmission(ctx context.Context, deal *model.ProductionDeal, payload *model.ProposalSubmission) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	terms := payload.Terms
	deal.Terms = &terms
	deal.ProposalDocumentKey = payload.ProposalDocumentKey
	if deal.ProposalDocumentKey == "" {
		deal.ProposalDocumentKey = d.storeDocument(ctx, documents.ProposalKey(deal.DealID), &terms)
	}

	// The hold granted at interest can lapse before the review wait
	// ends, so the window is refreshed to cover it. The conditional
	// grant always wins for the current holder.
	expiresAt, err := d.tryAcquireExclusivity(ctx, deal)
	if err != nil {
		return err
	}
	if expiresAt != nil {
		deal.ExclusivityExpiresAt = expiresAt
	} else {
		logrus.Warnf("deal %s could not refresh its hold on pitch %s", deal.DealID, deal.PitchID)
	}

	return d.suspend(ctx, deal, model.StatusProposalSubmitted, model.EventReviewDecision,
		negotiationWindow(conf.Negotiation.ReviewDays))
}

func (d *Dealflow) applyReviewDecision(ctx context.Context, deal *model.ProductionDeal, payload *model.ReviewDecision) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	switch payload.Decision {
	case model.ReviewAccept:
		return d.agreeTerms(ctx, deal)
	case model.ReviewReject:
		return d.closeWithRelease(ctx, deal, model.StatusRejected, "Creator rejected the proposal", model.OutcomeRejected)
	case model.ReviewCounter:
		deal.CounterTerms = payload.CounterTerms
		return d.suspend(ctx, deal, model.StatusNegotiation, model.EventCounterResponse,
			negotiationWindow(conf.Negotiation.CounterResponseDays))
	}
	return nil
}

func (d *Dealflow) applyCounterResponse(ctx context.Context, deal *model.ProductionDeal, payload *model.CounterResponse) error {
	if !payload.Accepted {
		return d.closeWithRelease(ctx, deal, model.StatusRejected, "Production company declined the counter terms", model.OutcomeRejected)
	}
	// The counter terms become the agreed terms.
	deal.Terms = deal.CounterTerms
	deal.CounterTerms = nil
	return d.agreeTerms(ctx, deal)
}

// agreeTerms records the agreed terms, drafts the production agreement
// and suspends the deal for signature.
func (d *Dealflow) agreeTerms(ctx context.Context, deal *model.ProductionDeal) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	deal.Status = model.StatusTermsAgreed
	if err := d.datasource.UpdateDeal(ctx, deal); err != nil {
		return err
	}
	d.postDealActions(ctx, deal)

	deal.ContractDocumentKey = d.storeDocument(ctx, documents.ContractKey(deal.DealID), deal.Terms)
	return d.suspend(ctx, deal, model.StatusContractDrafting, model.EventContractSigned,
		negotiationWindow(conf.Negotiation.ContractSigningDays))
}

func (d *Dealflow) applyContractSigned(ctx context.Context, deal *model.ProductionDeal, payload *model.ContractSigned) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	now := time.Now()
	deal.ContractDocumentKey = payload.SignedDocumentKey
	signedAt := payload.SignedAt
	deal.SignedAt = &signedAt
	deal.ActivatedAt = &now

	if err := d.datasource.CreateProduction(ctx, &model.Production{
		ProductionID:        model.GenerateUUIDWithSuffix("prod"),
		DealID:              deal.DealID,
		PitchID:             deal.PitchID,
		ProductionCompanyID: deal.ProductionCompanyID,
		StartedAt:           now,
	}); err != nil {
		return err
	}
	if err := d.datasource.UpsertPitchOwnership(ctx, deal.PitchID, deal.DealID, deal.ProductionCompanyID, now); err != nil {
		return err
	}

	// Ownership is recorded; the exclusivity window has done its job
	// and the pitch's waitlist, if any, learns the pitch is taken.
	if err := d.releaseExclusivity(ctx, deal); err != nil {
		return err
	}

	return d.suspend(ctx, deal, model.StatusActive, model.EventProductionComplete,
		negotiationWindow(conf.Negotiation.ProductionDays))
}

func (d *Dealflow) applyProductionComplete(ctx context.Context, deal *model.ProductionDeal, payload *model.ProductionComplete) error {
	completedAt := payload.CompletedAt
	deal.CompletedAt = &completedAt
	return d.terminate(ctx, deal, model.StatusCompleted, "Production delivered", model.OutcomeCompleted)
}

// applyWaitlistActivation runs when a waitlisted deal is promoted. The
// deal races for the freed window; losing the race, to a fresh interest
// expression for example, puts it back on the waitlist. enqueuedAt is
// the popped entry's original timestamp; re-inserting with it keeps the
// deal at its place in line instead of sending it to the tail.
func (d *Dealflow) applyWaitlistActivation(ctx context.Context, deal *model.ProductionDeal, enqueuedAt time.Time) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	expiresAt, err := d.tryAcquireExclusivity(ctx, deal)
	if err != nil {
		return err
	}
	if expiresAt == nil {
		logrus.Infof("deal %s lost the promotion race on pitch %s, re-queueing", deal.DealID, deal.PitchID)
		if enqueuedAt.IsZero() {
			return d.datasource.EnqueueWaitlist(ctx, deal.PitchID, deal.DealID)
		}
		return d.datasource.RequeueWaitlist(ctx, deal.PitchID, deal.DealID, enqueuedAt)
	}

	deal.ExclusivityExpiresAt = expiresAt
	return d.suspend(ctx, deal, model.StatusAwaitingCreatorResponse, model.EventCreatorResponse,
		negotiationWindow(conf.Negotiation.CreatorResponseDays))
}

// withdraw closes a deal at the production company's request, running
// whatever compensation its current stage requires.
func (d *Dealflow) withdraw(ctx context.Context, deal *model.ProductionDeal) error {
	if deal.Status == model.StatusWaitlisted {
		if err := d.datasource.RemoveWaitlistEntry(ctx, deal.PitchID, deal.DealID); err != nil {
			return err
		}
	}
	if deal.HoldsExclusivity() {
		if err := d.releaseExclusivity(ctx, deal); err != nil {
			return err
		}
	}
	return d.terminate(ctx, deal, model.StatusExpired, "Withdrawn by production company", model.OutcomeExpired)
}

// HandleDeadline processes a stage deadline task. A firing is stale
// when the deal has already consumed the stage's event or closed; stale
// firings are dropped without effect.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - task *asynq.Task: The task carrying the deadline payload.
//
// Returns:
// - error: An error if the timeout handling fails, for asynq to retry.
func (d *Dealflow) HandleDeadline(ctx context.Context, task *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "HandleStageDeadline")
	defer span.End()

	var payload DeadlinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("malformed deadline payload: %v", err)
		return nil
	}

	deal, err := d.datasource.GetDeal(ctx, payload.DealID)
	if err != nil {
		return logAndRecordError(span, "loading deal for deadline failed: ", err)
	}
	if deal.Status.Terminal() || deal.AwaitingEvent != payload.Stage {
		logrus.Infof("stale deadline for deal %s at stage %s, skipping", payload.DealID, payload.Stage)
		return nil
	}

	switch payload.Stage {
	case model.EventCreatorResponse:
		return d.closeWithRelease(ctx, deal, model.StatusTimeout, "Creator did not respond within the response window", model.OutcomeTimeout)
	case model.EventMeetingOutcome:
		return d.closeWithRelease(ctx, deal, model.StatusTimeout, "No meeting outcome within the meeting window", model.OutcomeTimeout)
	case model.EventProposalSubmission:
		return d.closeWithRelease(ctx, deal, model.StatusTimeout, "Proposal was not submitted within the proposal window", model.OutcomeTimeout)
	case model.EventReviewDecision:
		return d.closeWithRelease(ctx, deal, model.StatusTimeout, "Creator did not review the proposal in time", model.OutcomeTimeout)
	case model.EventCounterResponse:
		return d.closeWithRelease(ctx, deal, model.StatusTimeout, "No response to the counter terms in time", model.OutcomeTimeout)
	case model.EventContractSigned:
		return d.closeWithRelease(ctx, deal, model.StatusTimeout, "Contract was not signed within the signing window", model.OutcomeTimeout)
	case model.EventProductionComplete:
		// The window was already released on activation.
		return d.terminate(ctx, deal, model.StatusTimeout, "Production window elapsed without completion", model.OutcomeTimeout)
	case model.EventWaitlistActivated:
		if err := d.datasource.RemoveWaitlistEntry(ctx, deal.PitchID, deal.DealID); err != nil {
			return err
		}
		return d.terminate(ctx, deal, model.StatusRejected, "Did not proceed to meeting", model.OutcomeRejected)
	default:
		logrus.Errorf("deadline for unknown stage %s on deal %s", payload.Stage, payload.DealID)
		return nil
	}
}

// HandleWaitlistActivation processes a waitlist promotion task.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - task *asynq.Task: The task carrying the promoted deal ID.
//
// Returns:
// - error: An error if the promotion fails, for asynq to retry.
func (d *Dealflow) HandleWaitlistActivation(ctx context.Context, task *asynq.Task) error {
	ctx, span := tracer.Start(ctx, "HandleWaitlistActivation")
	defer span.End()

	var payload WaitlistPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("malformed waitlist payload: %v", err)
		return nil
	}

	deal, err := d.datasource.GetDeal(ctx, payload.DealID)
	if err != nil {
		return logAndRecordError(span, "loading deal for promotion failed: ", err)
	}
	if deal.Status != model.StatusWaitlisted {
		logrus.Infof("stale promotion for deal %s in status %s, skipping", deal.DealID, deal.Status)
		return nil
	}
	if err := d.applyWaitlistActivation(ctx, deal, payload.EnqueuedAt); err != nil {
		notification.NotifyError(err)
		return err
	}
	return nil
}

// storeDocument writes a document to the document store and returns its
// key. Document-service failures are reported but never block the saga;
// the deal carries on without the stored copy.
func (d *Dealflow) storeDocument(ctx context.Context, key string, terms *model.DealTerms) string {
	if d.documents == nil || terms == nil {
		return ""
	}
	data, err := json.Marshal(terms)
	if err != nil {
		notification.NotifyError(err)
		return ""
	}
	ref, err := d.documents.Put(ctx, key, data)
	if err != nil {
		notification.NotifyError(err)
		return ""
	}
	return ref
}
