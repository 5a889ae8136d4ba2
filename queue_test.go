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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/model"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
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
	return NewQueue(conf), mr
}

func TestQueueStageDeadlineIsDeduplicated(t *testing.T) {
	q, _ := newTestQueue(t)

	fireAt := time.Now().Add(5 * 24 * time.Hour)
	err := q.queueStageDeadline("deal_123", model.EventCreatorResponse, fireAt)
	assert.NoError(t, err)

	// Re-enqueueing the same deadline after a crash replay is a no-op.
	err = q.queueStageDeadline("deal_123", model.EventCreatorResponse, fireAt)
	assert.NoError(t, err)

	pending, err := q.GetPendingDeadline("deal_123", model.EventCreatorResponse)
	assert.NoError(t, err)
	assert.NotNil(t, pending)
	assert.Equal(t, "deal_123", pending.DealID)
	assert.Equal(t, model.EventCreatorResponse, pending.Stage)
}

func TestRescheduleStageDeadlineReplacesTimer(t *testing.T) {
	q, _ := newTestQueue(t)

	first := time.Now().Add(7 * 24 * time.Hour)
	assert.NoError(t, q.queueStageDeadline("deal_123", model.EventMeetingOutcome, first))

	// The follow-up meeting pushes the window out; the old timer must go.
	second := time.Now().Add(14 * 24 * time.Hour)
	assert.NoError(t, q.rescheduleStageDeadline("deal_123", model.EventMeetingOutcome, second))

	pending, err := q.GetPendingDeadline("deal_123", model.EventMeetingOutcome)
	assert.NoError(t, err)
	assert.NotNil(t, pending)
}

func TestQueueWaitlistActivation(t *testing.T) {
	q, _ := newTestQueue(t)

	enqueuedAt := time.Now().Add(-time.Hour)
	assert.NoError(t, q.queueWaitlistActivation("deal_456", enqueuedAt))
	// A duplicate promotion for the same deal is absorbed.
	assert.NoError(t, q.queueWaitlistActivation("deal_456", enqueuedAt))

	conf, err := config.Fetch()
	assert.NoError(t, err)
	task, err := q.Inspector.GetTaskInfo(conf.Queue.WaitlistQueue, "waitlist:deal_456")
	assert.NoError(t, err)
	assert.NotNil(t, task)
}

func TestGetPendingDeadlineNone(t *testing.T) {
	q, _ := newTestQueue(t)

	pending, err := q.GetPendingDeadline("deal_missing", model.EventCreatorResponse)
	assert.NoError(t, err)
	assert.Nil(t, pending)
}
