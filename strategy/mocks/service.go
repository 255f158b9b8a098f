package mocks

import (
	"context"

	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/strategy"
	"github.com/stretchr/testify/mock"
)

var _ strategy.Service = (*MockService)(nil)

// MockService is a mock implementation of the strategy.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) InitializeParameters(ctx context.Context) (*serde.Parameters, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*serde.Parameters), args.Error(1)
}

func (m *MockService) AggregateFit(ctx context.Context, round uint64, results []strategy.FitResult, failures []strategy.Failure) (strategy.FitAggregate, error) {
	args := m.Called(ctx, round, results, failures)
	return args.Get(0).(strategy.FitAggregate), args.Error(1)
}

func (m *MockService) AggregateEvaluate(ctx context.Context, round uint64, results []strategy.EvaluateResult, failures []strategy.Failure) (strategy.EvaluateAggregate, error) {
	args := m.Called(ctx, round, results, failures)
	return args.Get(0).(strategy.EvaluateAggregate), args.Error(1)
}

// GetCheckpoint retrieves the checkpoint of a round
func (m *MockService) GetCheckpoint(ctx context.Context, round uint64) (strategy.Checkpoint, error) {
	args := m.Called(ctx, round)
	return args.Get(0).(strategy.Checkpoint), args.Error(1)
}

// ListCheckpoints lists checkpoints with pagination
func (m *MockService) ListCheckpoints(ctx context.Context, offset, limit uint64) (strategy.CheckpointPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(strategy.CheckpointPage), args.Error(1)
}

// ListClients lists clients with pagination
func (m *MockService) ListClients(ctx context.Context, offset, limit uint64) (client.ClientPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(client.ClientPage), args.Error(1)
}

func (m *MockService) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
