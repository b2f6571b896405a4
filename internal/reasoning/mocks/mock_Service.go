// Package mocks provides test doubles for the reasoning service.
package mocks

import (
	"context"

	reasoning "github.com/sells-group/xsell-cli/internal/reasoning"
	mock "github.com/stretchr/testify/mock"
)

// MockService is a mock type for the Service interface.
type MockService struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, req
func (_m *MockService) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Complete")
	}

	var r0 *reasoning.Response
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, reasoning.Request) (*reasoning.Response, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, reasoning.Request) *reasoning.Response); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*reasoning.Response)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, reasoning.Request) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockService creates a new instance of MockService.
func NewMockService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockService {
	mock := &MockService{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
