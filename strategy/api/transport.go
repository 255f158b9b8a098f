package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/fedavg/pkg/api"
	"github.com/absmach/fedavg/strategy"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	roundKey = "round"

	maxBodySize = 1024 * 1024 * 256
)

func MakeHandler(svc strategy.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Post("/parameters/initialize", otelhttp.NewHandler(kithttp.NewServer(
		initializeParametersEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "initialize-parameters").ServeHTTP)

	mux.Route("/rounds/{round}", func(r chi.Router) {
		r.Post("/fit", otelhttp.NewHandler(kithttp.NewServer(
			aggregateFitEndpoint(svc),
			decodeFitReq,
			api.EncodeResponse,
			opts...,
		), "aggregate-fit").ServeHTTP)
		r.Post("/evaluate", otelhttp.NewHandler(kithttp.NewServer(
			aggregateEvaluateEndpoint(svc),
			decodeEvaluateReq,
			api.EncodeResponse,
			opts...,
		), "aggregate-evaluate").ServeHTTP)
	})

	mux.Route("/checkpoints", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listCheckpointsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-checkpoints").ServeHTTP)
		r.Get("/{round}", otelhttp.NewHandler(kithttp.NewServer(
			getCheckpointEndpoint(svc),
			decodeRoundReq,
			api.EncodeResponse,
			opts...,
		), "get-checkpoint").ServeHTTP)
	})

	mux.Get("/clients", otelhttp.NewHandler(kithttp.NewServer(
		listClientsEndpoint(svc),
		decodeListEntityReq,
		api.EncodeResponse,
		opts...,
	), "list-clients").ServeHTTP)

	mux.Get("/health", supermq.Health("fedavg", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeFitReq(_ context.Context, r *http.Request) (any, error) {
	round, err := readRound(r)
	if err != nil {
		return nil, err
	}

	req := fitReq{round: round}
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeEvaluateReq(_ context.Context, r *http.Request) (any, error) {
	round, err := readRound(r)
	if err != nil {
		return nil, err
	}

	req := evaluateReq{round: round}
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	return req, nil
}

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	round, err := readRound(r)
	if err != nil {
		return nil, err
	}

	return roundReq{round: round}, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

// decodeBody reads JSON or CBOR depending on the request content type.
func decodeBody(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	ct := r.Header.Get("Content-Type")

	switch {
	case strings.Contains(ct, api.CBORContentType):
		if err := cbor.NewDecoder(body).Decode(v); err != nil {
			return errors.Join(apiutil.ErrValidation, err)
		}
	case strings.Contains(ct, api.ContentType):
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return errors.Join(apiutil.ErrValidation, err)
		}
	default:
		return errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	return nil
}

func readRound(r *http.Request) (uint64, error) {
	round, err := strconv.ParseUint(chi.URLParam(r, roundKey), 10, 64)
	if err != nil {
		return 0, errors.Join(apiutil.ErrValidation, err)
	}

	return round, nil
}
