package model

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Event types consumed at the orchestrator's suspend points. Each type
// is only valid while the deal is parked on the matching stage; the
// orchestrator rejects anything else, which makes crash-time
// redelivery of an already-consumed event a no-op.
const (
	EventCreatorResponse    = "creator_response"
	EventMeetingOutcome     = "meeting_outcome"
	EventProposalSubmission = "proposal_submission"
	EventReviewDecision     = "review_decision"
	EventCounterResponse    = "counter_response"
	EventContractSigned     = "contract_signed"
	EventProductionComplete = "production_complete"
	EventWaitlistActivated  = "waitlist_activated"
	EventDealWithdrawn      = "deal_withdrawn"
)

// DealEvent is the envelope delivered to a suspended deal. Payload is
// decoded against the closed payload type for the event's suspend point.
type DealEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreatorDecision is the closed set of answers a creator can give to an
// interest expression.
type CreatorDecision string

const (
	CreatorInterested    CreatorDecision = "interested"
	CreatorNotInterested CreatorDecision = "not_interested"
	CreatorWaitlist      CreatorDecision = "waitlist"
)

type CreatorResponse struct {
	Decision              CreatorDecision `json:"decision"`
	PreferredMeetingTimes []time.Time     `json:"preferred_meeting_times,omitempty"`
	Message               string          `json:"message,omitempty"`
}

func (c CreatorResponse) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Decision, validation.Required, validation.In(CreatorInterested, CreatorNotInterested, CreatorWaitlist)),
	)
}

// MeetingResult is the closed set of outcomes of a pitch meeting.
type MeetingResult string

const (
	MeetingProceed      MeetingResult = "proceed"
	MeetingPass         MeetingResult = "pass"
	MeetingNeedMoreInfo MeetingResult = "need_more_info"
)

type MeetingOutcome struct {
	Outcome         MeetingResult `json:"outcome"`
	Notes           string        `json:"notes,omitempty"`
	NextMeetingDate *time.Time    `json:"next_meeting_date,omitempty"`
}

func (m MeetingOutcome) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Outcome, validation.Required, validation.In(MeetingProceed, MeetingPass, MeetingNeedMoreInfo)),
		validation.Field(&m.NextMeetingDate, validation.Required.When(m.Outcome == MeetingNeedMoreInfo)),
	)
}

type ProposalSubmission struct {
	// ProposalDocumentKey may be pre-rendered by the caller; when empty
	// the orchestrator writes the terms to the conventional key itself.
	ProposalDocumentKey string    `json:"proposal_document_key,omitempty"`
	Terms               DealTerms `json:"terms"`
	SubmittedAt         time.Time `json:"submitted_at"`
}

func (p ProposalSubmission) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SubmittedAt, validation.Required),
	)
}

// ReviewVerdict is the closed set of creator responses to a proposal.
type ReviewVerdict string

const (
	ReviewAccept  ReviewVerdict = "accept"
	ReviewReject  ReviewVerdict = "reject"
	ReviewCounter ReviewVerdict = "counter"
)

type ReviewDecision struct {
	Decision     ReviewVerdict `json:"decision"`
	CounterTerms *DealTerms    `json:"counter_terms,omitempty"`
	Message      string        `json:"message,omitempty"`
}

func (r ReviewDecision) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Decision, validation.Required, validation.In(ReviewAccept, ReviewReject, ReviewCounter)),
		validation.Field(&r.CounterTerms, validation.Required.When(r.Decision == ReviewCounter)),
	)
}

type CounterResponse struct {
	Accepted bool `json:"accepted"`
}

func (c CounterResponse) Validate() error {
	return nil
}

type ContractSigned struct {
	SignedDocumentKey string    `json:"signed_document_key"`
	SignedAt          time.Time `json:"signed_at"`
}

func (c ContractSigned) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SignedDocumentKey, validation.Required),
		validation.Field(&c.SignedAt, validation.Required),
	)
}

type ProductionComplete struct {
	CompletedAt time.Time `json:"completed_at"`
}

func (p ProductionComplete) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CompletedAt, validation.Required),
	)
}

// KnownEventType reports whether t names a suspend-point event the
// orchestrator understands.
func KnownEventType(t string) bool {
	switch t {
	case EventCreatorResponse, EventMeetingOutcome, EventProposalSubmission,
		EventReviewDecision, EventCounterResponse, EventContractSigned,
		EventProductionComplete, EventWaitlistActivated, EventDealWithdrawn:
		return true
	}
	return false
}
