package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus represents the stage a production deal is currently in.
// A deal advances monotonically through the negotiation stages except
// for the waitlist and counter-negotiation loops, which may revisit a
// prior stage a bounded number of times.
type DealStatus string

const (
	StatusInterest                DealStatus = "INTEREST"
	StatusWaitlisted              DealStatus = "WAITLISTED"
	StatusAwaitingCreatorResponse DealStatus = "AWAITING_CREATOR_RESPONSE"
	StatusMeetingScheduled        DealStatus = "MEETING_SCHEDULED"
	StatusAwaitingProposal        DealStatus = "AWAITING_PROPOSAL"
	StatusProposalSubmitted       DealStatus = "PROPOSAL_SUBMITTED"
	StatusNegotiation             DealStatus = "NEGOTIATION"
	StatusTermsAgreed             DealStatus = "TERMS_AGREED"
	StatusContractDrafting        DealStatus = "CONTRACT_DRAFTING"
	StatusActive                  DealStatus = "ACTIVE"
	StatusCompleted               DealStatus = "COMPLETED"
	StatusRejected                DealStatus = "REJECTED"
	StatusExpired                 DealStatus = "EXPIRED"
	StatusTimeout                 DealStatus = "TIMEOUT"
)

// Terminal reports whether no further transition can occur from this status.
func (s DealStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusExpired, StatusTimeout:
		return true
	}
	return false
}

// Coarse outcome codes recorded alongside the terminal reason.
const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeExpired   = "expired"
	OutcomeTimeout   = "timeout"
)

// InterestType classifies what the production company wants out of the pitch.
type InterestType string

const (
	InterestOption       InterestType = "option"
	InterestPurchase     InterestType = "purchase"
	InterestCoProduction InterestType = "co_production"
	InterestDistribution InterestType = "distribution"
)

// DealTerms captures the negotiated commercial terms of a deal.
type DealTerms struct {
	Budget            decimal.Decimal `json:"budget"`
	Timeline          string          `json:"timeline"`
	RightsStructure   string          `json:"rights_structure"`
	DistributionTerms string          `json:"distribution_terms"`
	BackendPoints     decimal.Decimal `json:"backend_points"`
}

// ProductionDeal is the aggregate root for one negotiation attempt.
// One row exists per (production company, pitch) interest expression;
// it is mutated only by the orchestrator and never deleted, serving as
// an immutable audit record once terminal.
type ProductionDeal struct {
	ID                 int64  `json:"-"`
	DealID             string `json:"deal_id"`
	WorkflowInstanceID string `json:"workflow_instance_id"`

	ProductionCompanyID     string `json:"production_company_id"`
	ProductionCompanyUserID string `json:"production_company_user_id"`
	CreatorID               string `json:"creator_id"`
	PitchID                 string `json:"pitch_id"`

	InterestType     InterestType    `json:"interest_type"`
	Message          string          `json:"message,omitempty"`
	ProposedBudget   decimal.Decimal `json:"proposed_budget"`
	ProposedTimeline string          `json:"proposed_timeline,omitempty"`
	NDAID            string          `json:"nda_id,omitempty"`

	Status        DealStatus `json:"status"`
	AwaitingEvent string     `json:"awaiting_event,omitempty"`
	StageDeadline *time.Time `json:"stage_deadline,omitempty"`
	FollowUpCount int        `json:"follow_up_count"`

	ExclusivityExpiresAt *time.Time `json:"exclusivity_expires_at,omitempty"`

	// CurrentExclusiveCompany names the company holding the pitch's
	// window at the moment this deal was waitlisted. Carried on the
	// waitlisted notification and API response only, never persisted.
	CurrentExclusiveCompany string `json:"current_exclusive_company,omitempty"`

	ProposalDocumentKey string     `json:"proposal_document_key,omitempty"`
	Terms               *DealTerms `json:"terms,omitempty"`
	CounterTerms        *DealTerms `json:"counter_terms,omitempty"`
	ContractDocumentKey string     `json:"contract_document_key,omitempty"`
	SignedAt            *time.Time `json:"signed_at,omitempty"`
	ActivatedAt         *time.Time `json:"activated_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	Reason      string                 `json:"reason,omitempty"`
	OutcomeCode string                 `json:"outcome_code,omitempty"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// HoldsExclusivity reports whether this deal currently references a
// granted exclusivity window. The window itself may have lapsed on the
// storage side; release is idempotent either way.
func (d *ProductionDeal) HoldsExclusivity() bool {
	return d.ExclusivityExpiresAt != nil
}

func (d *ProductionDeal) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// ExclusivityWindow is the single mutable shared resource per pitch:
// at most one non-expired window exists for a pitch at any time.
type ExclusivityWindow struct {
	PitchID   string    `json:"pitch_id"`
	DealID    string    `json:"deal_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired treats a lapsed window as free; no separate reaper runs.
func (w *ExclusivityWindow) Expired(now time.Time) bool {
	return !w.ExpiresAt.After(now)
}

// WaitlistEntry is one deal queued behind a pitch's exclusivity window.
// Entries are promoted in strict (enqueued_at, id) order.
type WaitlistEntry struct {
	ID         int64     `json:"-"`
	PitchID    string    `json:"pitch_id"`
	DealID     string    `json:"deal_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Production is the tracking record created when a deal activates.
type Production struct {
	ProductionID        string    `json:"production_id"`
	DealID              string    `json:"deal_id"`
	PitchID             string    `json:"pitch_id"`
	ProductionCompanyID string    `json:"production_company_id"`
	StartedAt           time.Time `json:"started_at"`
}
