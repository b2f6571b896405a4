// Package mocks provides test doubles for the run store.
package mocks

import (
	"context"

	model "github.com/sells-group/xsell-cli/internal/model"
	store "github.com/sells-group/xsell-cli/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, customerID
func (_m *MockStore) CreateRun(ctx context.Context, customerID string) (*model.Run, error) {
	ret := _m.Called(ctx, customerID)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	var r0 *model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Run, error)); ok {
		return rf(ctx, customerID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Run); ok {
		r0 = rf(ctx, customerID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Run)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, customerID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateRunStatus provides a mock function with given fields: ctx, runID, status
func (_m *MockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	ret := _m.Called(ctx, runID, status)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunStatus")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, model.RunStatus) error); ok {
		r0 = rf(ctx, runID, status)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// UpdateRunResult provides a mock function with given fields: ctx, runID, result, usage
func (_m *MockStore) UpdateRunResult(ctx context.Context, runID string, result *model.RecommendationResult, usage model.TokenUsage) error {
	ret := _m.Called(ctx, runID, result, usage)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunResult")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, *model.RecommendationResult, model.TokenUsage) error); ok {
		r0 = rf(ctx, runID, result, usage)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Run, error)); ok {
		return rf(ctx, runID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Run); ok {
		r0 = rf(ctx, runID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Run)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, runID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.RunFilter) ([]model.Run, error)); ok {
		return rf(ctx, filter)
	}
	if rf, ok := ret.Get(0).(func(context.Context, store.RunFilter) []model.Run); ok {
		r0 = rf(ctx, filter)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Run)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, store.RunFilter) error); ok {
		r1 = rf(ctx, filter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateStage provides a mock function with given fields: ctx, runID, name
func (_m *MockStore) CreateStage(ctx context.Context, runID string, name string) (*model.RunStage, error) {
	ret := _m.Called(ctx, runID, name)

	if len(ret) == 0 {
		panic("no return value specified for CreateStage")
	}

	var r0 *model.RunStage
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*model.RunStage, error)); ok {
		return rf(ctx, runID, name)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *model.RunStage); ok {
		r0 = rf(ctx, runID, name)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.RunStage)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, runID, name)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CompleteStage provides a mock function with given fields: ctx, stageID, result
func (_m *MockStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	ret := _m.Called(ctx, stageID, result)

	if len(ret) == 0 {
		panic("no return value specified for CompleteStage")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, *model.StageResult) error); ok {
		r0 = rf(ctx, stageID, result)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
