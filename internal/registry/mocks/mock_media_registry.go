package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mediavault/internal/model"
	"mediavault/internal/registry"
)

type MockMediaRegistry struct {
	mock.Mock
}

func (m *MockMediaRegistry) Create(ctx context.Context, obj *model.MediaObject) (*model.MediaObject, error) {
	args := m.Called(ctx, obj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaObject), args.Error(1)
}

func (m *MockMediaRegistry) FindByID(ctx context.Context, id string) (*model.MediaObject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaObject), args.Error(1)
}

func (m *MockMediaRegistry) ListByOwner(ctx context.Context, ownerID string, pq registry.PageQuery) (*registry.PageResult[model.MediaObject], error) {
	args := m.Called(ctx, ownerID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.PageResult[model.MediaObject]), args.Error(1)
}

func (m *MockMediaRegistry) UpdateModeration(ctx context.Context, id string, status model.ModerationStatus, verified bool) error {
	args := m.Called(ctx, id, status, verified)
	return args.Error(0)
}

func (m *MockMediaRegistry) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
