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
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/database/mocks"
	redis_db "github.com/pitchroom/dealflow/internal/redis-db"
	"github.com/pitchroom/dealflow/model"
)

// stubVerifier answers verification checks with a canned result.
type stubVerifier struct {
	result *VerificationResult
	err    error
}

func (s *stubVerifier) VerifyCompany(_ context.Context, _ string) (*VerificationResult, error) {
	return s.result, s.err
}

// memStore is an in-memory document store for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return key, nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object stored under %s", key)
	}
	return data, nil
}

func newTestDealflow(t *testing.T) (*Dealflow, *mocks.MockDataSource, *memStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)

	conf := &config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	}
	config.MockConfig(conf)

	redisClient, err := redis_db.NewRedisClient([]string{mr.Addr()}, false)
	if err != nil {
		t.Fatalf("an error '%s' occurred when connecting to miniredis", err)
	}

	datasource := &mocks.MockDataSource{}
	store := newMemStore()
	d := &Dealflow{
		queue:      NewQueue(conf),
		redis:      redisClient.Client(),
		datasource: datasource,
		documents:  store,
		verifier:   &stubVerifier{result: &VerificationResult{Verified: true}},
	}
	return d, datasource, store, mr
}

func eventWithPayload(t *testing.T, eventType string, payload interface{}) *model.DealEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	assert.NoError(t, err)
	return &model.DealEvent{Type: eventType, Payload: raw}
}

func suspendedDeal(status model.DealStatus, awaiting string) *model.ProductionDeal {
	deadline := time.Now().Add(24 * time.Hour)
	expires := time.Now().Add(30 * 24 * time.Hour)
	return &model.ProductionDeal{
		DealID:                  "deal_123",
		WorkflowInstanceID:      "wfl_123",
		ProductionCompanyID:     "company_1",
		ProductionCompanyUserID: "user_1",
		CreatorID:               "creator_1",
		PitchID:                 "pitch_1",
		InterestType:            model.InterestOption,
		ProposedBudget:          decimal.NewFromInt(250000),
		Status:                  status,
		AwaitingEvent:           awaiting,
		StageDeadline:           &deadline,
		ExclusivityExpiresAt:    &expires,
	}
}

func TestCreatorInterestedSchedulesMeeting(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingCreatorResponse, model.EventCreatorResponse)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCreatorResponse, model.CreatorResponse{Decision: model.CreatorInterested}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusMeetingScheduled, updated.Status)
	assert.Equal(t, model.EventMeetingOutcome, updated.AwaitingEvent)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *updated.StageDeadline, time.Minute)
}

func TestCreatorDeclinedReleasesExclusivity(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingCreatorResponse, model.EventCreatorResponse)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").Return(nil, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCreatorResponse, model.CreatorResponse{Decision: model.CreatorNotInterested}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)
	assert.Equal(t, model.OutcomeRejected, updated.OutcomeCode)
	assert.Empty(t, updated.AwaitingEvent)
	assert.Nil(t, updated.ExclusivityExpiresAt)
	datasource.AssertCalled(t, "ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123")
}

func TestReleasePromotesWaitlistHead(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingCreatorResponse, model.EventCreatorResponse)
	enqueuedAt := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").
		Return(&model.WaitlistEntry{PitchID: "pitch_1", DealID: "deal_next", EnqueuedAt: enqueuedAt}, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	_, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCreatorResponse, model.CreatorResponse{Decision: model.CreatorNotInterested}))
	assert.NoError(t, err)

	conf, err := config.Fetch()
	assert.NoError(t, err)
	task, err := d.queue.Inspector.GetTaskInfo(conf.Queue.WaitlistQueue, "waitlist:deal_next")
	assert.NoError(t, err)
	var payload WaitlistPayload
	assert.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, "deal_next", payload.DealID)
	// The promotion carries the entry's original enqueue time.
	assert.True(t, payload.EnqueuedAt.Equal(enqueuedAt))
}

func TestCreatorWaitlistDecisionParksDeal(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingCreatorResponse, model.EventCreatorResponse)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").Return(nil, nil)
	datasource.On("EnqueueWaitlist", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("GetExclusivityWindow", mock.Anything, "pitch_1").Return(nil, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCreatorResponse, model.CreatorResponse{Decision: model.CreatorWaitlist}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, updated.Status)
	assert.Equal(t, model.EventWaitlistActivated, updated.AwaitingEvent)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *updated.StageDeadline, time.Minute)
}

func TestMeetingFollowUpIsBounded(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusMeetingScheduled, model.EventMeetingOutcome)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").Return(nil, nil)

	nextMeeting := time.Now().Add(3 * 24 * time.Hour)
	outcome := model.MeetingOutcome{Outcome: model.MeetingNeedMoreInfo, NextMeetingDate: &nextMeeting}

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventMeetingOutcome, outcome))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusMeetingScheduled, updated.Status)
	assert.Equal(t, 1, updated.FollowUpCount)
	assert.WithinDuration(t, nextMeeting.Add(7*24*time.Hour), *updated.StageDeadline, time.Minute)

	// A second undecided meeting closes the deal instead of looping.
	updated, err = d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventMeetingOutcome, outcome))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)
}

func TestProposalThroughActivation(t *testing.T) {
	d, datasource, store, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingProposal, model.EventProposalSubmission)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)
	datasource.On("AcquireExclusivity", mock.Anything, "pitch_1", "deal_123", mock.Anything).Return(true, nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").Return(nil, nil)
	datasource.On("CreateProduction", mock.Anything, mock.Anything).Return(nil)
	datasource.On("UpsertPitchOwnership", mock.Anything, "pitch_1", "deal_123", "company_1", mock.Anything).Return(nil)

	terms := model.DealTerms{Budget: decimal.NewFromInt(300000), Timeline: "18 months"}
	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventProposalSubmission, model.ProposalSubmission{Terms: terms, SubmittedAt: time.Now()}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusProposalSubmitted, updated.Status)
	assert.Equal(t, model.EventReviewDecision, updated.AwaitingEvent)
	assert.Equal(t, "proposals/deal_123/proposal.json", updated.ProposalDocumentKey)
	_, err = store.Get(context.Background(), "proposals/deal_123/proposal.json")
	assert.NoError(t, err)

	updated, err = d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventReviewDecision, model.ReviewDecision{Decision: model.ReviewAccept}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusContractDrafting, updated.Status)
	assert.Equal(t, model.EventContractSigned, updated.AwaitingEvent)
	_, err = store.Get(context.Background(), "contracts/deal_123/production-agreement.json")
	assert.NoError(t, err)

	signedAt := time.Now()
	updated, err = d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventContractSigned, model.ContractSigned{SignedDocumentKey: "contracts/deal_123/signed.json", SignedAt: signedAt}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusActive, updated.Status)
	assert.Equal(t, model.EventProductionComplete, updated.AwaitingEvent)
	assert.NotNil(t, updated.ActivatedAt)
	assert.Nil(t, updated.ExclusivityExpiresAt)
	datasource.AssertCalled(t, "CreateProduction", mock.Anything, mock.Anything)
	datasource.AssertCalled(t, "UpsertPitchOwnership", mock.Anything, "pitch_1", "deal_123", "company_1", mock.Anything)

	completedAt := time.Now()
	updated, err = d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventProductionComplete, model.ProductionComplete{CompletedAt: completedAt}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, updated.Status)
	assert.Equal(t, model.OutcomeCompleted, updated.OutcomeCode)
}

func TestProposalSubmissionRefreshesExclusivity(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	// The hold granted at interest is a day from lapsing; the review
	// wait alone is longer than that.
	deal := suspendedDeal(model.StatusAwaitingProposal, model.EventProposalSubmission)
	nearExpiry := time.Now().Add(24 * time.Hour)
	deal.ExclusivityExpiresAt = &nearExpiry
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("AcquireExclusivity", mock.Anything, "pitch_1", "deal_123", mock.Anything).Return(true, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	terms := model.DealTerms{Budget: decimal.NewFromInt(300000), Timeline: "18 months"}
	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventProposalSubmission, model.ProposalSubmission{Terms: terms, SubmittedAt: time.Now()}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusProposalSubmitted, updated.Status)

	// The window now covers the whole review wait.
	datasource.AssertCalled(t, "AcquireExclusivity", mock.Anything, "pitch_1", "deal_123", mock.Anything)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *updated.ExclusivityExpiresAt, time.Minute)
	assert.True(t, updated.ExclusivityExpiresAt.After(*updated.StageDeadline))
}

func TestCounterAcceptedAdoptsCounterTerms(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusNegotiation, model.EventCounterResponse)
	counter := &model.DealTerms{Budget: decimal.NewFromInt(200000), Timeline: "9 months"}
	deal.Terms = &model.DealTerms{Budget: decimal.NewFromInt(300000)}
	deal.CounterTerms = counter
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCounterResponse, model.CounterResponse{Accepted: true}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusContractDrafting, updated.Status)
	assert.True(t, updated.Terms.Budget.Equal(decimal.NewFromInt(200000)))
	assert.Nil(t, updated.CounterTerms)
}

func TestCounterDeclinedClosesDeal(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusNegotiation, model.EventCounterResponse)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").Return(nil, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCounterResponse, model.CounterResponse{Accepted: false}))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusRejected, updated.Status)
}

func TestMismatchedEventIsRejected(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusMeetingScheduled, model.EventMeetingOutcome)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)

	_, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCreatorResponse, model.CreatorResponse{Decision: model.CreatorInterested}))
	assert.Error(t, err)
	datasource.AssertNotCalled(t, "UpdateDeal", mock.Anything, mock.Anything)
}

func TestTerminalDealRejectsEvents(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusCompleted, "")
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)

	_, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventProductionComplete, model.ProductionComplete{CompletedAt: time.Now()}))
	assert.Error(t, err)
	datasource.AssertNotCalled(t, "UpdateDeal", mock.Anything, mock.Anything)
}

func TestInvalidPayloadIsRejected(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingCreatorResponse, model.EventCreatorResponse)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)

	_, err := d.HandleEvent(context.Background(), "deal_123",
		eventWithPayload(t, model.EventCreatorResponse, model.CreatorResponse{Decision: "maybe"}))
	assert.Error(t, err)
	datasource.AssertNotCalled(t, "UpdateDeal", mock.Anything, mock.Anything)
}

func TestWithdrawWaitlistedDeal(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusWaitlisted, model.EventWaitlistActivated)
	deal.ExclusivityExpiresAt = nil
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("RemoveWaitlistEntry", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	updated, err := d.HandleEvent(context.Background(), "deal_123",
		&model.DealEvent{Type: model.EventDealWithdrawn})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusExpired, updated.Status)
	assert.Equal(t, "Withdrawn by production company", updated.Reason)
	datasource.AssertCalled(t, "RemoveWaitlistEntry", mock.Anything, "pitch_1", "deal_123")
}

func deadlineTask(t *testing.T, dealID, stage string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(DeadlinePayload{DealID: dealID, Stage: stage})
	assert.NoError(t, err)
	return asynq.NewTask("deal:deadline", payload)
}

func TestDeadlineTimesOutSuspendedDeal(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusAwaitingCreatorResponse, model.EventCreatorResponse)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("PopWaitlistHead", mock.Anything, "pitch_1").Return(nil, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	err := d.HandleDeadline(context.Background(), deadlineTask(t, "deal_123", model.EventCreatorResponse))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusTimeout, deal.Status)
	assert.Equal(t, model.OutcomeTimeout, deal.OutcomeCode)
	datasource.AssertCalled(t, "ReleaseExclusivity", mock.Anything, "pitch_1", "deal_123")
}

func TestStaleDeadlineIsDropped(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	// The deal moved on before the timer fired.
	deal := suspendedDeal(model.StatusMeetingScheduled, model.EventMeetingOutcome)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)

	err := d.HandleDeadline(context.Background(), deadlineTask(t, "deal_123", model.EventCreatorResponse))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusMeetingScheduled, deal.Status)
	datasource.AssertNotCalled(t, "UpdateDeal", mock.Anything, mock.Anything)
}

func TestWaitlistDeadlineRejectsUnpromotedDeal(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusWaitlisted, model.EventWaitlistActivated)
	deal.ExclusivityExpiresAt = nil
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("RemoveWaitlistEntry", mock.Anything, "pitch_1", "deal_123").Return(nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	err := d.HandleDeadline(context.Background(), deadlineTask(t, "deal_123", model.EventWaitlistActivated))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusRejected, deal.Status)
	assert.Equal(t, model.OutcomeRejected, deal.OutcomeCode)
	assert.Equal(t, "Did not proceed to meeting", deal.Reason)
}

func TestWaitlistActivationWinsRace(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusWaitlisted, model.EventWaitlistActivated)
	deal.ExclusivityExpiresAt = nil
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("AcquireExclusivity", mock.Anything, "pitch_1", "deal_123", mock.Anything).Return(true, nil)
	datasource.On("UpdateDeal", mock.Anything, deal).Return(nil)

	payload, err := json.Marshal(WaitlistPayload{DealID: "deal_123"})
	assert.NoError(t, err)
	err = d.HandleWaitlistActivation(context.Background(), asynq.NewTask("deal:waitlist", payload))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusAwaitingCreatorResponse, deal.Status)
	assert.NotNil(t, deal.ExclusivityExpiresAt)
}

func TestWaitlistActivationLossKeepsQueuePosition(t *testing.T) {
	d, datasource, _, _ := newTestDealflow(t)

	deal := suspendedDeal(model.StatusWaitlisted, model.EventWaitlistActivated)
	deal.ExclusivityExpiresAt = nil
	enqueuedAt := time.Now().Add(-72 * time.Hour).UTC().Truncate(time.Second)
	datasource.On("GetDeal", mock.Anything, "deal_123").Return(deal, nil)
	datasource.On("AcquireExclusivity", mock.Anything, "pitch_1", "deal_123", mock.Anything).Return(false, nil)
	datasource.On("RequeueWaitlist", mock.Anything, "pitch_1", "deal_123",
		mock.MatchedBy(func(ts time.Time) bool { return ts.Equal(enqueuedAt) })).Return(nil)

	payload, err := json.Marshal(WaitlistPayload{DealID: "deal_123", EnqueuedAt: enqueuedAt})
	assert.NoError(t, err)
	err = d.HandleWaitlistActivation(context.Background(), asynq.NewTask("deal:waitlist", payload))
	assert.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, deal.Status)
	// The deal goes back at its original position, not the tail.
	datasource.AssertCalled(t, "RequeueWaitlist", mock.Anything, "pitch_1", "deal_123", mock.Anything)
	datasource.AssertNotCalled(t, "EnqueueWaitlist", mock.Anything, mock.Anything, mock.Anything)
}
