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

package database

import (
	"context"
	"time"

	"github.com/pitchroom/dealflow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	deal        // Interface for deal-related operations
	exclusivity // Interface for exclusivity window and waitlist operations
	production  // Interface for production tracking operations
}

// deal defines methods for handling production deals.
type deal interface {
	RecordDeal(ctx context.Context, deal *model.ProductionDeal) (*model.ProductionDeal, error) // Upserts a deal by deal_id
	GetDeal(ctx context.Context, id string) (*model.ProductionDeal, error)                     // Retrieves a deal by ID
	UpdateDeal(ctx context.Context, deal *model.ProductionDeal) error                          // Writes the mutable columns of a deal
	GetDealsByPitch(ctx context.Context, pitchID string) ([]*model.ProductionDeal, error)      // Retrieves all deals for a pitch
}

// exclusivity defines methods for the pitch exclusivity window and its FIFO waitlist.
type exclusivity interface {
	AcquireExclusivity(ctx context.Context, pitchID, dealID string, expiresAt time.Time) (bool, error) // Conditional grant; false when held by another deal
	GetExclusivityWindow(ctx context.Context, pitchID string) (*model.ExclusivityWindow, error)        // Current window, nil when none
	ReleaseExclusivity(ctx context.Context, pitchID, dealID string) error                              // Clears the window if dealID holds it
	EnqueueWaitlist(ctx context.Context, pitchID, dealID string) error                                 // Appends a deal to the waitlist tail
	PopWaitlistHead(ctx context.Context, pitchID string) (*model.WaitlistEntry, error)                 // Removes and returns the FIFO head, nil when empty
	RequeueWaitlist(ctx context.Context, pitchID, dealID string, enqueuedAt time.Time) error           // Re-inserts a popped entry at its original position
	RemoveWaitlistEntry(ctx context.Context, pitchID, dealID string) error                             // Removes a specific waitlisted deal
	GetWaitlist(ctx context.Context, pitchID string) ([]model.WaitlistEntry, error)                    // Waitlist in promotion order
}

// production defines methods for the records created when a deal activates.
type production interface {
	CreateProduction(ctx context.Context, prod *model.Production) error                                       // Creates a production tracking record
	UpsertPitchOwnership(ctx context.Context, pitchID, dealID, companyID string, acquiredAt time.Time) error  // Records the pitch's new owning deal
}
