package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/absmach/fedavg/pkg/client"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
	mqttmocks "github.com/absmach/fedavg/pkg/mqtt/mocks"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/absmach/fedavg/strategy"
	"github.com/absmach/fedavg/strategy/api"
	"github.com/absmach/fedavg/strategy/mocks"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	method      string
	url         string
	contentType string
	body        io.Reader
}

func (tr testRequest) make(t *testing.T, ts *httptest.Server) *http.Response {
	t.Helper()

	req, err := http.NewRequest(tr.method, ts.URL+tr.url, tr.body)
	require.NoError(t, err)
	if tr.contentType != "" {
		req.Header.Set("Content-Type", tr.contentType)
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		res.Body.Close()
	})

	return res
}

func newServer(svc strategy.Service) *httptest.Server {
	return httptest.NewServer(api.MakeHandler(svc, slog.Default(), "test"))
}

func TestInitializeParameters(t *testing.T) {
	svc := new(mocks.MockService)
	ts := newServer(svc)
	defer ts.Close()

	params := &serde.Parameters{Tensors: [][]byte{{1, 2}}, TensorType: serde.TensorTypeStateDict}
	svc.On("InitializeParameters", mock.Anything).Return(params, nil).Once()
	svc.On("InitializeParameters", mock.Anything).Return(nil, pkgerrors.ErrUnavailable).Once()

	res := testRequest{method: http.MethodPost, url: "/parameters/initialize"}.make(t, ts)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var got serde.Parameters
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, *params, got)

	res = testRequest{method: http.MethodPost, url: "/parameters/initialize"}.make(t, ts)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestAggregateFit(t *testing.T) {
	svc := new(mocks.MockService)
	ts := newServer(svc)
	defer ts.Close()

	results := []strategy.FitResult{
		{ClientID: "c1", Parameters: serde.Parameters{Tensors: [][]byte{{1}}, TensorType: serde.TensorTypeJSONF64}, NumExamples: 10},
	}
	body := map[string]any{"results": results, "failures": []strategy.Failure{}}

	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)
	cborBody, err := cbor.Marshal(body)
	require.NoError(t, err)

	agg := strategy.FitAggregate{
		Parameters: &serde.Parameters{Tensors: [][]byte{{2}}, TensorType: serde.TensorTypeJSONF64},
		Metrics:    map[string]any{"num_clients": 1},
	}
	svc.On("AggregateFit", mock.Anything, uint64(3), results, mock.Anything).Return(agg, nil)
	svc.On("AggregateFit", mock.Anything, uint64(4), results, mock.Anything).Return(strategy.FitAggregate{}, pkgerrors.ErrMalformed)

	cases := []struct {
		desc   string
		req    testRequest
		status int
	}{
		{
			desc:   "json body",
			req:    testRequest{method: http.MethodPost, url: "/rounds/3/fit", contentType: "application/json", body: bytes.NewReader(jsonBody)},
			status: http.StatusOK,
		},
		{
			desc:   "cbor body",
			req:    testRequest{method: http.MethodPost, url: "/rounds/3/fit", contentType: "application/cbor", body: bytes.NewReader(cborBody)},
			status: http.StatusOK,
		},
		{
			desc:   "malformed results",
			req:    testRequest{method: http.MethodPost, url: "/rounds/4/fit", contentType: "application/json", body: bytes.NewReader(jsonBody)},
			status: http.StatusBadRequest,
		},
		{
			desc:   "invalid round",
			req:    testRequest{method: http.MethodPost, url: "/rounds/abc/fit", contentType: "application/json", body: bytes.NewReader(jsonBody)},
			status: http.StatusBadRequest,
		},
		{
			desc:   "unsupported content type",
			req:    testRequest{method: http.MethodPost, url: "/rounds/3/fit", contentType: "text/plain", body: bytes.NewReader(jsonBody)},
			status: http.StatusBadRequest,
		},
		{
			desc:   "invalid json",
			req:    testRequest{method: http.MethodPost, url: "/rounds/3/fit", contentType: "application/json", body: strings.NewReader("{")},
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res := tc.req.make(t, ts)
			assert.Equal(t, tc.status, res.StatusCode)
		})
	}
}

func TestAggregateEvaluate(t *testing.T) {
	svc := new(mocks.MockService)
	ts := newServer(svc)
	defer ts.Close()

	results := []strategy.EvaluateResult{{ClientID: "c1", NumExamples: 4, Loss: 0.5, Accuracy: 0.9}}
	loss := 0.5
	svc.On("AggregateEvaluate", mock.Anything, uint64(1), results, []strategy.Failure(nil)).
		Return(strategy.EvaluateAggregate{Loss: &loss, Metrics: map[string]any{"accuracy": 0.9}}, nil)

	body, err := json.Marshal(map[string]any{"results": results})
	require.NoError(t, err)

	res := testRequest{method: http.MethodPost, url: "/rounds/1/evaluate", contentType: "application/json", body: bytes.NewReader(body)}.make(t, ts)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var got strategy.EvaluateAggregate
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.NotNil(t, got.Loss)
	assert.Equal(t, 0.5, *got.Loss)
	assert.Equal(t, 0.9, got.Metrics["accuracy"])
}

func TestAggregateEvaluateNonFinite(t *testing.T) {
	pubsub := new(mqttmocks.MockPubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := strategy.NewService(
		strategy.Config{BaseTopic: "m/d/c/ch"},
		client.NewManager(),
		client.NewMQTTTransport(pubsub, "m/d/c/ch"),
		serde.NewRegistry(),
		fl.NewFedAvgAggregator(),
		storage.NewInMemoryStorage[strategy.Checkpoint](),
		pubsub,
		slog.Default(),
	)
	ts := newServer(svc)
	defer ts.Close()

	cases := []struct {
		desc    string
		results []strategy.EvaluateResult
	}{
		{
			desc:    "NaN loss",
			results: []strategy.EvaluateResult{{ClientID: "c1", NumExamples: 4, Loss: math.NaN(), Accuracy: 0.9}},
		},
		{
			desc:    "infinite accuracy",
			results: []strategy.EvaluateResult{{ClientID: "c1", NumExamples: 4, Loss: 0.5, Accuracy: math.Inf(1)}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			body, err := cbor.Marshal(map[string]any{"results": tc.results})
			require.NoError(t, err)

			res := testRequest{method: http.MethodPost, url: "/rounds/1/evaluate", contentType: "application/cbor", body: bytes.NewReader(body)}.make(t, ts)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)

			var got map[string]string
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
			assert.NotEmpty(t, got["error"])
		})
	}

	_, err := svc.GetCheckpoint(context.Background(), 1)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestUnencodableResponse(t *testing.T) {
	svc := new(mocks.MockService)
	ts := newServer(svc)
	defer ts.Close()

	loss := math.NaN()
	svc.On("AggregateEvaluate", mock.Anything, uint64(2), mock.Anything, mock.Anything).
		Return(strategy.EvaluateAggregate{Loss: &loss, Metrics: map[string]any{}}, nil)

	body, err := json.Marshal(map[string]any{"results": []strategy.EvaluateResult{{ClientID: "c1", NumExamples: 1}}})
	require.NoError(t, err)

	res := testRequest{method: http.MethodPost, url: "/rounds/2/evaluate", contentType: "application/json", body: bytes.NewReader(body)}.make(t, ts)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.NotEmpty(t, got["error"])
}

func TestCheckpoints(t *testing.T) {
	svc := new(mocks.MockService)
	ts := newServer(svc)
	defer ts.Close()

	svc.On("GetCheckpoint", mock.Anything, uint64(2)).Return(strategy.Checkpoint{Round: 2}, nil)
	svc.On("GetCheckpoint", mock.Anything, uint64(9)).Return(strategy.Checkpoint{}, pkgerrors.ErrNotFound)
	svc.On("ListCheckpoints", mock.Anything, uint64(0), uint64(10)).
		Return(strategy.CheckpointPage{Limit: 10, Total: 1, Checkpoints: []strategy.Checkpoint{{Round: 2}}}, nil)

	cases := []struct {
		desc   string
		url    string
		status int
	}{
		{desc: "get checkpoint", url: "/checkpoints/2", status: http.StatusOK},
		{desc: "get missing checkpoint", url: "/checkpoints/9", status: http.StatusNotFound},
		{desc: "get checkpoint with invalid round", url: "/checkpoints/x", status: http.StatusBadRequest},
		{desc: "list checkpoints", url: "/checkpoints?limit=10", status: http.StatusOK},
		{desc: "list checkpoints over limit", url: "/checkpoints?limit=1000", status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res := testRequest{method: http.MethodGet, url: tc.url}.make(t, ts)
			assert.Equal(t, tc.status, res.StatusCode)
		})
	}
}

func TestListClients(t *testing.T) {
	svc := new(mocks.MockService)
	ts := newServer(svc)
	defer ts.Close()

	page := client.ClientPage{Limit: 100, Total: 1, Clients: []client.Client{{ID: "c1", Name: "edge-1"}}}
	svc.On("ListClients", mock.Anything, uint64(0), uint64(100)).Return(page, nil)

	res := testRequest{method: http.MethodGet, url: "/clients"}.make(t, ts)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var got client.ClientPage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "edge-1", got.Clients[0].Name)
}
