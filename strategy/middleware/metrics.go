package middleware

import (
	"context"
	"time"

	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/strategy"
	"github.com/go-kit/kit/metrics"
)

var _ strategy.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     strategy.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc strategy.Service) strategy.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) InitializeParameters(ctx context.Context) (*serde.Parameters, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "initialize-parameters").Add(1)
		mm.latency.With("method", "initialize-parameters").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.InitializeParameters(ctx)
}

func (mm *metricsMiddleware) AggregateFit(ctx context.Context, round uint64, results []strategy.FitResult, failures []strategy.Failure) (strategy.FitAggregate, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "aggregate-fit").Add(1)
		mm.latency.With("method", "aggregate-fit").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AggregateFit(ctx, round, results, failures)
}

func (mm *metricsMiddleware) AggregateEvaluate(ctx context.Context, round uint64, results []strategy.EvaluateResult, failures []strategy.Failure) (strategy.EvaluateAggregate, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "aggregate-evaluate").Add(1)
		mm.latency.With("method", "aggregate-evaluate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AggregateEvaluate(ctx, round, results, failures)
}

func (mm *metricsMiddleware) GetCheckpoint(ctx context.Context, round uint64) (strategy.Checkpoint, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-checkpoint").Add(1)
		mm.latency.With("method", "get-checkpoint").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetCheckpoint(ctx, round)
}

func (mm *metricsMiddleware) ListCheckpoints(ctx context.Context, offset, limit uint64) (strategy.CheckpointPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-checkpoints").Add(1)
		mm.latency.With("method", "list-checkpoints").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListCheckpoints(ctx, offset, limit)
}

func (mm *metricsMiddleware) ListClients(ctx context.Context, offset, limit uint64) (client.ClientPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-clients").Add(1)
		mm.latency.With("method", "list-clients").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListClients(ctx, offset, limit)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscribe").Add(1)
		mm.latency.With("method", "subscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscribe(ctx)
}
