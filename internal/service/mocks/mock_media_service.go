package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mediavault/internal/access"
	"mediavault/internal/model"
	"mediavault/internal/registry"
	"mediavault/internal/service"
)

type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) Upload(ctx context.Context, ownerID string, files []service.UploadFile, opts service.UploadOptions) []service.UploadResult {
	args := m.Called(ctx, ownerID, files, opts)
	return args.Get(0).([]service.UploadResult)
}

func (m *MockMediaService) Access(ctx context.Context, mediaID, requesterID string) (*access.Grant, error) {
	args := m.Called(ctx, mediaID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.Grant), args.Error(1)
}

func (m *MockMediaService) Resolve(token string) ([]byte, string, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockMediaService) Delete(ctx context.Context, mediaID, requesterID string) error {
	args := m.Called(ctx, mediaID, requesterID)
	return args.Error(0)
}

func (m *MockMediaService) Status(ctx context.Context, mediaID string) (*service.StatusResult, error) {
	args := m.Called(ctx, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatusResult), args.Error(1)
}

func (m *MockMediaService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) (*registry.PageResult[model.MediaObject], error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.PageResult[model.MediaObject]), args.Error(1)
}
