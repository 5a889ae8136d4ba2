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
package model

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/pitchroom/dealflow/model"
)

// ExpressInterest is the request body for opening a deal against a pitch.
type ExpressInterest struct {
	ProductionCompanyID     string                 `json:"production_company_id"`
	ProductionCompanyUserID string                 `json:"production_company_user_id"`
	CreatorID               string                 `json:"creator_id"`
	PitchID                 string                 `json:"pitch_id"`
	InterestType            string                 `json:"interest_type"`
	Message                 string                 `json:"message"`
	ProposedBudget          decimal.Decimal        `json:"proposed_budget"`
	ProposedTimeline        string                 `json:"proposed_timeline"`
	NDAID                   string                 `json:"nda_id"`
	MetaData                map[string]interface{} `json:"meta_data"`
}

func (e *ExpressInterest) ValidateExpressInterest() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.ProductionCompanyID, validation.Required),
		validation.Field(&e.ProductionCompanyUserID, validation.Required),
		validation.Field(&e.CreatorID, validation.Required),
		validation.Field(&e.PitchID, validation.Required),
		validation.Field(&e.InterestType, validation.Required, validation.In(
			string(model.InterestOption), string(model.InterestPurchase),
			string(model.InterestCoProduction), string(model.InterestDistribution))),
	)
}

func (e *ExpressInterest) ToDeal() *model.ProductionDeal {
	return &model.ProductionDeal{
		ProductionCompanyID:     e.ProductionCompanyID,
		ProductionCompanyUserID: e.ProductionCompanyUserID,
		CreatorID:               e.CreatorID,
		PitchID:                 e.PitchID,
		InterestType:            model.InterestType(e.InterestType),
		Message:                 e.Message,
		ProposedBudget:          e.ProposedBudget,
		ProposedTimeline:        e.ProposedTimeline,
		NDAID:                   e.NDAID,
		MetaData:                e.MetaData,
	}
}

// SendDealEvent is the request body for delivering an event to a
// suspended deal. The payload is decoded against the event type's
// closed payload struct by the orchestrator.
type SendDealEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *SendDealEvent) ValidateSendDealEvent() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Type, validation.Required, validation.By(func(value interface{}) error {
			t, _ := value.(string)
			if !model.KnownEventType(t) {
				return validation.NewError("validation_unknown_event", "unknown event type")
			}
			return nil
		})),
	)
}

func (s *SendDealEvent) ToDealEvent() *model.DealEvent {
	return &model.DealEvent{Type: s.Type, Payload: s.Payload}
}
