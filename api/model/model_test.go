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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pitchroom/dealflow/model"
)

func validInterest() ExpressInterest {
	return ExpressInterest{
		ProductionCompanyID:     "company_1",
		ProductionCompanyUserID: "user_1",
		CreatorID:               "creator_1",
		PitchID:                 "pitch_1",
		InterestType:            "option",
		ProposedBudget:          decimal.NewFromInt(250000),
	}
}

func TestValidateExpressInterest(t *testing.T) {
	interest := validInterest()
	assert.NoError(t, interest.ValidateExpressInterest())
}

func TestValidateExpressInterestMissingPitch(t *testing.T) {
	interest := validInterest()
	interest.PitchID = ""
	assert.Error(t, interest.ValidateExpressInterest())
}

func TestValidateExpressInterestUnknownType(t *testing.T) {
	interest := validInterest()
	interest.InterestType = "remake"
	assert.Error(t, interest.ValidateExpressInterest())
}

func TestToDeal(t *testing.T) {
	interest := validInterest()
	deal := interest.ToDeal()
	assert.Equal(t, "pitch_1", deal.PitchID)
	assert.Equal(t, model.InterestOption, deal.InterestType)
	assert.True(t, deal.ProposedBudget.Equal(decimal.NewFromInt(250000)))
}

func TestValidateSendDealEvent(t *testing.T) {
	event := SendDealEvent{Type: model.EventCreatorResponse}
	assert.NoError(t, event.ValidateSendDealEvent())

	event = SendDealEvent{Type: "creator_ghosted"}
	assert.Error(t, event.ValidateSendDealEvent())

	event = SendDealEvent{}
	assert.Error(t, event.ValidateSendDealEvent())
}
