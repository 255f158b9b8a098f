package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/strategy"
)

var _ strategy.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    strategy.Service
}

func Logging(logger *slog.Logger, svc strategy.Service) strategy.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) InitializeParameters(ctx context.Context) (resp *serde.Parameters, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if resp != nil {
			args = append(args, slog.Group("parameters",
				slog.String("tensor_type", resp.TensorType),
				slog.Int("tensors", len(resp.Tensors)),
			))
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Initialize parameters failed", args...)

			return
		}
		lm.logger.Info("Initialize parameters completed successfully", args...)
	}(time.Now())

	return lm.svc.InitializeParameters(ctx)
}

func (lm *loggingMiddleware) AggregateFit(ctx context.Context, round uint64, results []strategy.FitResult, failures []strategy.Failure) (resp strategy.FitAggregate, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("number", round),
				slog.Int("results", len(results)),
				slog.Int("failures", len(failures)),
				slog.Bool("aggregated", resp.Parameters != nil),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate fit failed", args...)

			return
		}
		lm.logger.Info("Aggregate fit completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregateFit(ctx, round, results, failures)
}

func (lm *loggingMiddleware) AggregateEvaluate(ctx context.Context, round uint64, results []strategy.EvaluateResult, failures []strategy.Failure) (resp strategy.EvaluateAggregate, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("number", round),
				slog.Int("results", len(results)),
				slog.Int("failures", len(failures)),
			),
		}
		if resp.Loss != nil {
			args = append(args, slog.Float64("loss", *resp.Loss))
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate evaluate failed", args...)

			return
		}
		lm.logger.Info("Aggregate evaluate completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregateEvaluate(ctx, round, results, failures)
}

func (lm *loggingMiddleware) GetCheckpoint(ctx context.Context, round uint64) (resp strategy.Checkpoint, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round", round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get checkpoint failed", args...)

			return
		}
		lm.logger.Info("Get checkpoint completed successfully", args...)
	}(time.Now())

	return lm.svc.GetCheckpoint(ctx, round)
}

func (lm *loggingMiddleware) ListCheckpoints(ctx context.Context, offset, limit uint64) (resp strategy.CheckpointPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List checkpoints failed", args...)

			return
		}
		lm.logger.Info("List checkpoints completed successfully", args...)
	}(time.Now())

	return lm.svc.ListCheckpoints(ctx, offset, limit)
}

func (lm *loggingMiddleware) ListClients(ctx context.Context, offset, limit uint64) (resp client.ClientPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List clients failed", args...)

			return
		}
		lm.logger.Info("List clients completed successfully", args...)
	}(time.Now())

	return lm.svc.ListClients(ctx, offset, limit)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}
