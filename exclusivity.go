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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pitchroom/dealflow/config"
	redlock "github.com/pitchroom/dealflow/internal/lock"
	"github.com/pitchroom/dealflow/internal/notification"
	"github.com/pitchroom/dealflow/model"
)

// ExclusivityStatus is the externally visible state of a pitch's
// exclusivity window and its waitlist.
type ExclusivityStatus struct {
	PitchID  string                   `json:"pitch_id"`
	Window   *model.ExclusivityWindow `json:"window,omitempty"`
	Waitlist []model.WaitlistEntry    `json:"waitlist"`
}

// tryAcquireExclusivity attempts to grant the deal its pitch's
// exclusivity window. The grant is a single conditional write in the
// datasource; two concurrent interest expressions can never both win.
//
// Returns the granted expiry time, or nil when the window is held by a
// competing deal.
func (d *Dealflow) tryAcquireExclusivity(ctx context.Context, deal *model.ProductionDeal) (*time.Time, error) {
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(time.Duration(conf.Negotiation.ExclusivityHoldDays) * 24 * time.Hour)
	granted, err := d.datasource.AcquireExclusivity(ctx, deal.PitchID, deal.DealID, expiresAt)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, nil
	}
	return &expiresAt, nil
}

// pitchLocker guards the release-then-promote sequence for one pitch.
func (d *Dealflow) pitchLocker(pitchID string) *redlock.Locker {
	return redlock.NewLocker(d.redis, fmt.Sprintf("exclusivity:%s", pitchID), model.GenerateUUIDWithSuffix("loc"))
}

// releaseExclusivity gives the pitch's window back and promotes the
// waitlist head, if any. The compensating release runs on every path
// that closes a lock-holding deal, and is idempotent; releasing a
// window the deal no longer holds deletes nothing.
//
// Promotion happens under a short Redis lock so that a deadline firing
// and a creator decision racing on the same pitch cannot both pop a
// waitlist head.
func (d *Dealflow) releaseExclusivity(ctx context.Context, deal *model.ProductionDeal) error {
	if err := d.datasource.ReleaseExclusivity(ctx, deal.PitchID, deal.DealID); err != nil {
		return err
	}
	deal.ExclusivityExpiresAt = nil

	locker := d.pitchLocker(deal.PitchID)
	if err := locker.WaitLock(ctx, 30*time.Second, 10*time.Second); err != nil {
		return err
	}
	defer func() {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("failed to unlock promotion lock", err)
		}
	}()

	next, err := d.datasource.PopWaitlistHead(ctx, deal.PitchID)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	logrus.Infof("promoting waitlisted deal %s on pitch %s", next.DealID, deal.PitchID)
	return d.queue.queueWaitlistActivation(next.DealID, next.EnqueuedAt)
}

// enqueueWaitlisted parks the deal behind the pitch's current window.
// The deal keeps a bounded wait: a waitlist deadline closes it if no
// promotion arrives in time. The waitlisted notification names the
// company the deal is queued behind.
func (d *Dealflow) enqueueWaitlisted(ctx context.Context, deal *model.ProductionDeal) error {
	if err := d.datasource.EnqueueWaitlist(ctx, deal.PitchID, deal.DealID); err != nil {
		return err
	}
	deal.CurrentExclusiveCompany = d.currentExclusiveCompany(ctx, deal.PitchID)

	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	deadline := time.Now().Add(time.Duration(conf.Negotiation.WaitlistDays) * 24 * time.Hour)
	return d.suspend(ctx, deal, model.StatusWaitlisted, model.EventWaitlistActivated, deadline)
}

// currentExclusiveCompany resolves which company holds the pitch's live
// window. Best effort; the waitlisted notification goes out without it
// when the lookup fails or the window lapsed in between.
func (d *Dealflow) currentExclusiveCompany(ctx context.Context, pitchID string) string {
	window, err := d.datasource.GetExclusivityWindow(ctx, pitchID)
	if err != nil || window == nil || window.Expired(time.Now()) {
		return ""
	}
	holder, err := d.datasource.GetDeal(ctx, window.DealID)
	if err != nil {
		logrus.Warnf("could not resolve holding deal %s on pitch %s: %v", window.DealID, pitchID, err)
		return ""
	}
	return holder.ProductionCompanyID
}

// GetExclusivityStatus returns the pitch's current window and waitlist.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - pitchID string: The pitch to inspect.
//
// Returns:
// - *ExclusivityStatus: The window and ordered waitlist.
// - error: An error if retrieval fails.
func (d *Dealflow) GetExclusivityStatus(ctx context.Context, pitchID string) (*ExclusivityStatus, error) {
	window, err := d.datasource.GetExclusivityWindow(ctx, pitchID)
	if err != nil {
		return nil, err
	}
	// A lapsed window reads as free.
	if window != nil && window.Expired(time.Now()) {
		window = nil
	}

	waitlist, err := d.datasource.GetWaitlist(ctx, pitchID)
	if err != nil {
		return nil, err
	}
	return &ExclusivityStatus{PitchID: pitchID, Window: window, Waitlist: waitlist}, nil
}

// postDealActions fans a deal's new state out to the notification
// webhook. Failures never block the saga.
func (d *Dealflow) postDealActions(_ context.Context, deal *model.ProductionDeal) {
	go func() {
		err := SendWebhook(NewWebhook{
			Event:   getEventFromStatus(deal.Status),
			Payload: deal,
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
}
