package middleware

import (
	"context"

	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/strategy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ strategy.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    strategy.Service
}

func Tracing(tracer trace.Tracer, svc strategy.Service) strategy.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) InitializeParameters(ctx context.Context) (*serde.Parameters, error) {
	ctx, span := tm.tracer.Start(ctx, "initialize-parameters")
	defer span.End()

	return tm.svc.InitializeParameters(ctx)
}

func (tm *tracing) AggregateFit(ctx context.Context, round uint64, results []strategy.FitResult, failures []strategy.Failure) (strategy.FitAggregate, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate-fit", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
		attribute.Int("results", len(results)),
		attribute.Int("failures", len(failures)),
	))
	defer span.End()

	return tm.svc.AggregateFit(ctx, round, results, failures)
}

func (tm *tracing) AggregateEvaluate(ctx context.Context, round uint64, results []strategy.EvaluateResult, failures []strategy.Failure) (strategy.EvaluateAggregate, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate-evaluate", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
		attribute.Int("results", len(results)),
		attribute.Int("failures", len(failures)),
	))
	defer span.End()

	return tm.svc.AggregateEvaluate(ctx, round, results, failures)
}

func (tm *tracing) GetCheckpoint(ctx context.Context, round uint64) (strategy.Checkpoint, error) {
	ctx, span := tm.tracer.Start(ctx, "get-checkpoint", trace.WithAttributes(
		attribute.Int64("round", int64(round)),
	))
	defer span.End()

	return tm.svc.GetCheckpoint(ctx, round)
}

func (tm *tracing) ListCheckpoints(ctx context.Context, offset, limit uint64) (strategy.CheckpointPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-checkpoints", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListCheckpoints(ctx, offset, limit)
}

func (tm *tracing) ListClients(ctx context.Context, offset, limit uint64) (client.ClientPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-clients", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListClients(ctx, offset, limit)
}

func (tm *tracing) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}
