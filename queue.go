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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pitchroom/dealflow/config"
	redis_db "github.com/pitchroom/dealflow/internal/redis-db"
)

// Queue wraps the asynq client used for the durable side of the saga:
// stage deadlines, waitlist promotions and webhook deliveries all go
// through Redis so they survive a process restart.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// DeadlinePayload identifies which suspend point a deadline task belongs
// to. A firing is stale, and ignored, when the deal has already moved
// past the named stage.
type DeadlinePayload struct {
	DealID string `json:"deal_id"`
	Stage  string `json:"stage"`
}

// WaitlistPayload carries a promotion from the waitlist worker back into
// the orchestrator. EnqueuedAt is the popped entry's original timestamp,
// so a deal that loses the re-acquire race keeps its place in line.
type WaitlistPayload struct {
	DealID     string    `json:"deal_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// deadlineTaskID builds the deduplication key for a stage deadline. One
// deal re-entering the same stage (the bounded meeting follow-up loop)
// first has its previous deadline removed under the same ID.
func deadlineTaskID(dealID, stage string) string {
	return fmt.Sprintf("deadline:%s:%s", dealID, stage)
}

// queueStageDeadline enqueues a delayed task that fires when the current
// stage's response window elapses. The task ID makes re-enqueueing after
// a crash a no-op instead of a duplicate timer.
//
// Parameters:
// - dealID string: The ID of the suspended deal.
// - stage string: The event type the deal is parked on.
// - fireAt time.Time: When the deadline elapses.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) queueStageDeadline(dealID, stage string, fireAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(DeadlinePayload{DealID: dealID, Stage: stage})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(deadlineTaskID(dealID, stage)),
		asynq.Queue(cfg.Queue.DeadlineQueue),
		asynq.ProcessIn(time.Until(fireAt)),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.DeadlineQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued stage deadline: %s %s", dealID, stage)
	return nil
}

// rescheduleStageDeadline replaces a pending deadline for a stage the
// deal is re-entering. Used by the meeting follow-up loop, where the
// same suspend point gets a fresh window.
func (q *Queue) rescheduleStageDeadline(dealID, stage string, fireAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	// Best effort; the task may have fired already or never existed.
	if err := q.Inspector.DeleteTask(cfg.Queue.DeadlineQueue, deadlineTaskID(dealID, stage)); err != nil {
		log.Printf("no pending deadline to replace for %s %s: %v", dealID, stage, err)
	}
	return q.queueStageDeadline(dealID, stage, fireAt)
}

// queueWaitlistActivation enqueues an immediate task telling a
// waitlisted deal that the exclusivity window on its pitch is free.
//
// Parameters:
// - dealID string: The promoted deal.
// - enqueuedAt time.Time: When the deal originally joined the waitlist.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) queueWaitlistActivation(dealID string, enqueuedAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(WaitlistPayload{DealID: dealID, EnqueuedAt: enqueuedAt})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("waitlist:%s", dealID)),
		asynq.Queue(cfg.Queue.WaitlistQueue),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.WaitlistQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued waitlist activation: %s", dealID)
	return nil
}

// GetPendingDeadline retrieves a scheduled deadline task for a deal and
// stage, or nil when none is pending.
//
// Parameters:
// - dealID string: The deal the deadline belongs to.
// - stage string: The suspend point the deadline guards.
//
// Returns:
// - *DeadlinePayload: The pending deadline, or nil.
// - error: An error if the queue could not be inspected.
func (q *Queue) GetPendingDeadline(dealID, stage string) (*DeadlinePayload, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	task, err := q.Inspector.GetTaskInfo(cfg.Queue.DeadlineQueue, deadlineTaskID(dealID, stage))
	if err != nil || task == nil {
		return nil, nil
	}
	var payload DeadlinePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
