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
package mocks

import (
	"context"
	"time"

	"github.com/pitchroom/dealflow/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Deal methods

func (m *MockDataSource) RecordDeal(ctx context.Context, deal *model.ProductionDeal) (*model.ProductionDeal, error) {
	args := m.Called(ctx, deal)
	return args.Get(0).(*model.ProductionDeal), args.Error(1)
}

func (m *MockDataSource) GetDeal(ctx context.Context, id string) (*model.ProductionDeal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductionDeal), args.Error(1)
}

func (m *MockDataSource) UpdateDeal(ctx context.Context, deal *model.ProductionDeal) error {
	args := m.Called(ctx, deal)
	return args.Error(0)
}

func (m *MockDataSource) GetDealsByPitch(ctx context.Context, pitchID string) ([]*model.ProductionDeal, error) {
	args := m.Called(ctx, pitchID)
	return args.Get(0).([]*model.ProductionDeal), args.Error(1)
}

// Exclusivity methods

func (m *MockDataSource) AcquireExclusivity(ctx context.Context, pitchID, dealID string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, pitchID, dealID, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetExclusivityWindow(ctx context.Context, pitchID string) (*model.ExclusivityWindow, error) {
	args := m.Called(ctx, pitchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExclusivityWindow), args.Error(1)
}

func (m *MockDataSource) ReleaseExclusivity(ctx context.Context, pitchID, dealID string) error {
	args := m.Called(ctx, pitchID, dealID)
	return args.Error(0)
}

func (m *MockDataSource) EnqueueWaitlist(ctx context.Context, pitchID, dealID string) error {
	args := m.Called(ctx, pitchID, dealID)
	return args.Error(0)
}

func (m *MockDataSource) PopWaitlistHead(ctx context.Context, pitchID string) (*model.WaitlistEntry, error) {
	args := m.Called(ctx, pitchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WaitlistEntry), args.Error(1)
}

func (m *MockDataSource) RequeueWaitlist(ctx context.Context, pitchID, dealID string, enqueuedAt time.Time) error {
	args := m.Called(ctx, pitchID, dealID, enqueuedAt)
	return args.Error(0)
}

func (m *MockDataSource) RemoveWaitlistEntry(ctx context.Context, pitchID, dealID string) error {
	args := m.Called(ctx, pitchID, dealID)
	return args.Error(0)
}

func (m *MockDataSource) GetWaitlist(ctx context.Context, pitchID string) ([]model.WaitlistEntry, error) {
	args := m.Called(ctx, pitchID)
	return args.Get(0).([]model.WaitlistEntry), args.Error(1)
}

// Production methods

func (m *MockDataSource) CreateProduction(ctx context.Context, prod *model.Production) error {
	args := m.Called(ctx, prod)
	return args.Error(0)
}

func (m *MockDataSource) UpsertPitchOwnership(ctx context.Context, pitchID, dealID, companyID string, acquiredAt time.Time) error {
	args := m.Called(ctx, pitchID, dealID, companyID, acquiredAt)
	return args.Error(0)
}
