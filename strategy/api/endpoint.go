package api

import (
	"context"
	"errors"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/strategy"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func initializeParametersEndpoint(svc strategy.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		params, err := svc.InitializeParameters(ctx)
		if err != nil {
			return parametersRes{}, err
		}

		return parametersRes{Parameters: params}, nil
	}
}

func aggregateFitEndpoint(svc strategy.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(fitReq)
		if !ok {
			return fitRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return fitRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		agg, err := svc.AggregateFit(ctx, req.round, req.Results, req.Failures)
		if err != nil {
			return fitRes{}, err
		}

		return fitRes{FitAggregate: agg}, nil
	}
}

func aggregateEvaluateEndpoint(svc strategy.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(evaluateReq)
		if !ok {
			return evaluateRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return evaluateRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		agg, err := svc.AggregateEvaluate(ctx, req.round, req.Results, req.Failures)
		if err != nil {
			return evaluateRes{}, err
		}

		return evaluateRes{EvaluateAggregate: agg}, nil
	}
}

func getCheckpointEndpoint(svc strategy.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return checkpointRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return checkpointRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		cp, err := svc.GetCheckpoint(ctx, req.round)
		if err != nil {
			return checkpointRes{}, err
		}

		return checkpointRes{Checkpoint: cp}, nil
	}
}

func listCheckpointsEndpoint(svc strategy.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listCheckpointsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listCheckpointsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListCheckpoints(ctx, req.offset, req.limit)
		if err != nil {
			return listCheckpointsRes{}, err
		}

		return listCheckpointsRes{CheckpointPage: page}, nil
	}
}

func listClientsEndpoint(svc strategy.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listClientsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listClientsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListClients(ctx, req.offset, req.limit)
		if err != nil {
			return listClientsRes{}, err
		}

		return listClientsRes{ClientPage: page}, nil
	}
}
