package strategy_test

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/absmach/fedavg/pkg/client"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/mqtt/mocks"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/pkg/storage"
	"github.com/absmach/fedavg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const baseTopic = "m/domain/c/channel"

type fakeProxy struct {
	id     string
	params serde.Parameters
}

func (f fakeProxy) ID() string { return f.id }

func (f fakeProxy) GetParameters(context.Context) (serde.Parameters, error) {
	return f.params, nil
}

type fixture struct {
	svc     strategy.Service
	clients client.Manager
	pubsub  *mocks.MockPubSub
}

func newFixture(t *testing.T, cfg strategy.Config) fixture {
	t.Helper()

	cfg.BaseTopic = baseTopic
	pubsub := new(mocks.MockPubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clients := client.NewManager()
	svc := strategy.NewService(
		cfg,
		clients,
		client.NewMQTTTransport(pubsub, baseTopic),
		serde.NewRegistry(),
		fl.NewFedAvgAggregator(),
		storage.NewInMemoryStorage[strategy.Checkpoint](),
		pubsub,
		slog.Default(),
	)

	return fixture{svc: svc, clients: clients, pubsub: pubsub}
}

func stateDict(t *testing.T, names []string, layers ...[]float64) serde.Parameters {
	t.Helper()

	w := make(fl.Weights, len(layers))
	for i, l := range layers {
		w[i] = fl.Tensor{Shape: []int{len(l)}, Data: l}
	}
	p, err := serde.EncodeStateDict(names, w)
	require.NoError(t, err)

	return p
}

func jsonF64(t *testing.T, layers ...[]float64) serde.Parameters {
	t.Helper()

	w := make(fl.Weights, len(layers))
	for i, l := range layers {
		w[i] = fl.Tensor{Shape: []int{len(l)}, Data: l}
	}
	p, err := serde.NewJSONCodec().FromWeights(w, nil)
	require.NoError(t, err)

	return p
}

func weights(t *testing.T, p *serde.Parameters) fl.Weights {
	t.Helper()

	require.NotNil(t, p)
	w, err := serde.NewRegistry().ToWeights(*p)
	require.NoError(t, err)

	return w
}

func TestInitializeParameters(t *testing.T) {
	ctx := context.Background()
	initial := stateDict(t, []string{"fc.weight"}, []float64{1, 2})

	t.Run("configured parameters", func(t *testing.T) {
		f := newFixture(t, strategy.Config{InitialParameters: &initial})

		p, err := f.svc.InitializeParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, initial, *p)
	})

	t.Run("parameters from a sampled client", func(t *testing.T) {
		f := newFixture(t, strategy.Config{InitTimeout: time.Second})
		_, err := f.clients.Register(ctx, fakeProxy{id: "c1", params: initial}, "edge-1")
		require.NoError(t, err)

		p, err := f.svc.InitializeParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, initial, *p)
	})

	t.Run("no client available", func(t *testing.T) {
		f := newFixture(t, strategy.Config{InitTimeout: 50 * time.Millisecond})

		_, err := f.svc.InitializeParameters(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrUnavailable)
	})

	t.Run("unknown tensor type is passed through", func(t *testing.T) {
		raw := serde.Parameters{Tensors: [][]byte{{0x1}}, TensorType: "numpy.ndarray"}
		f := newFixture(t, strategy.Config{InitialParameters: &raw})

		p, err := f.svc.InitializeParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, raw, *p)
	})

	t.Run("corrupt state dict", func(t *testing.T) {
		bad := serde.Parameters{Tensors: [][]byte{{0xff, 0x00}}, TensorType: serde.TensorTypeStateDict}
		f := newFixture(t, strategy.Config{InitialParameters: &bad})

		_, err := f.svc.InitializeParameters(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrMalformed)
	})
}

func TestAggregateFit(t *testing.T) {
	ctx := context.Background()
	names := []string{"fc.weight"}

	cases := []struct {
		desc           string
		acceptFailures bool
		results        []strategy.FitResult
		failures       []strategy.Failure
		want           fl.Weights
		metrics        map[string]any
		err            error
	}{
		{
			desc:    "no results",
			metrics: map[string]any{},
		},
		{
			desc: "failures rejected",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: stateDict(t, names, []float64{1, 2}), NumExamples: 1},
			},
			failures: []strategy.Failure{{ClientID: "c2", Error: "timeout"}},
			metrics:  map[string]any{},
		},
		{
			desc:           "failures accepted",
			acceptFailures: true,
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: stateDict(t, names, []float64{1, 2}), NumExamples: 4},
			},
			failures: []strategy.Failure{{ClientID: "c2", Error: "timeout"}},
			want:     fl.Weights{{Shape: []int{2}, Data: []float64{1, 2}}},
			metrics:  map[string]any{"num_clients": 1, "num_failures": 1, "total_examples": uint64(4)},
		},
		{
			desc: "weighted average of state dicts",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: stateDict(t, names, []float64{1, 2}), NumExamples: 1},
				{ClientID: "c2", Parameters: stateDict(t, names, []float64{3, 4}), NumExamples: 3},
			},
			want:    fl.Weights{{Shape: []int{2}, Data: []float64{2.5, 3.5}}},
			metrics: map[string]any{"num_clients": 2, "num_failures": 0, "total_examples": uint64(4)},
		},
		{
			desc: "weighted average of json layers",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: jsonF64(t, []float64{0, 8}, []float64{1}), NumExamples: 2},
				{ClientID: "c2", Parameters: jsonF64(t, []float64{4, 0}, []float64{3}), NumExamples: 2},
			},
			want: fl.Weights{
				{Shape: []int{2}, Data: []float64{2, 4}},
				{Shape: []int{1}, Data: []float64{2}},
			},
			metrics: map[string]any{"num_clients": 2, "num_failures": 0, "total_examples": uint64(4)},
		},
		{
			desc: "shape mismatch between clients",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: stateDict(t, names, []float64{1, 2}), NumExamples: 1},
				{ClientID: "c2", Parameters: stateDict(t, names, []float64{1, 2, 3}), NumExamples: 1},
			},
			err: pkgerrors.ErrMalformed,
		},
		{
			desc: "mixed tensor types",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: stateDict(t, names, []float64{1, 2}), NumExamples: 1},
				{ClientID: "c2", Parameters: jsonF64(t, []float64{3, 4}), NumExamples: 1},
			},
			err: pkgerrors.ErrMalformed,
		},
		{
			desc: "mixed tensor types behind a json result",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: jsonF64(t, []float64{3, 4}), NumExamples: 1},
				{ClientID: "c2", Parameters: stateDict(t, names, []float64{1, 2}), NumExamples: 1},
			},
			err: pkgerrors.ErrMalformed,
		},
		{
			desc: "unsupported tensor type",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: serde.Parameters{TensorType: "numpy.ndarray"}, NumExamples: 1},
			},
			err: pkgerrors.ErrMalformed,
		},
		{
			desc: "no examples",
			results: []strategy.FitResult{
				{ClientID: "c1", Parameters: stateDict(t, names, []float64{1}), NumExamples: 0},
			},
			err: pkgerrors.ErrMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			f := newFixture(t, strategy.Config{AcceptFailures: tc.acceptFailures})

			agg, err := f.svc.AggregateFit(ctx, 1, tc.results, tc.failures)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.metrics, agg.Metrics)

			if tc.want == nil {
				assert.Nil(t, agg.Parameters)

				return
			}
			assert.Equal(t, tc.want, weights(t, agg.Parameters))
			assert.Equal(t, tc.results[0].Parameters.TensorType, agg.Parameters.TensorType)
		})
	}
}

func TestAggregateFitUsesInitialTemplate(t *testing.T) {
	ctx := context.Background()
	initial := stateDict(t, []string{"conv.weight", "fc.bias"}, []float64{0, 0}, []float64{0})
	f := newFixture(t, strategy.Config{InitialParameters: &initial})

	_, err := f.svc.InitializeParameters(ctx)
	require.NoError(t, err)

	results := []strategy.FitResult{
		{ClientID: "c1", Parameters: stateDict(t, []string{"a", "b"}, []float64{1, 1}, []float64{2}), NumExamples: 5},
	}
	agg, err := f.svc.AggregateFit(ctx, 1, results, nil)
	require.NoError(t, err)

	tmpl, err := serde.NewStateDictCodec().Template(*agg.Parameters)
	require.NoError(t, err)
	assert.Equal(t, "conv.weight", tmpl.Layers[0].Name)
	assert.Equal(t, "fc.bias", tmpl.Layers[1].Name)

	results[0].Parameters = stateDict(t, []string{"a"}, []float64{1, 1})
	_, err = f.svc.AggregateFit(ctx, 2, results, nil)
	assert.ErrorIs(t, err, serde.ErrTemplateMismatch)
}

func TestAggregateFitPublishesRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, strategy.Config{})

	results := []strategy.FitResult{
		{ClientID: "c1", Parameters: stateDict(t, []string{"w"}, []float64{1}), NumExamples: 1},
	}
	_, err := f.svc.AggregateFit(ctx, 7, results, nil)
	require.NoError(t, err)

	f.pubsub.AssertCalled(t, "Publish", mock.Anything, baseTopic+"/fl/rounds/7/aggregated", mock.Anything)
}

func TestAggregateEvaluate(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		desc           string
		acceptFailures bool
		results        []strategy.EvaluateResult
		failures       []strategy.Failure
		loss           *float64
		accuracy       float64
		err            error
	}{
		{
			desc: "no results",
		},
		{
			desc: "failures rejected",
			results: []strategy.EvaluateResult{
				{ClientID: "c1", NumExamples: 1, Loss: 0.5, Accuracy: 0.5},
			},
			failures: []strategy.Failure{{ClientID: "c2"}},
		},
		{
			desc:           "failures accepted",
			acceptFailures: true,
			results: []strategy.EvaluateResult{
				{ClientID: "c1", NumExamples: 2, Loss: 0.5, Accuracy: 0.75},
			},
			failures: []strategy.Failure{{ClientID: "c2"}},
			loss:     ptr(0.5),
			accuracy: 0.75,
		},
		{
			desc: "weighted loss",
			results: []strategy.EvaluateResult{
				{ClientID: "c1", NumExamples: 1, Loss: 0.5, Accuracy: 0.2},
				{ClientID: "c2", NumExamples: 3, Loss: 0.1, Accuracy: 0.6},
			},
			loss:     ptr(0.2),
			accuracy: 0.5,
		},
		{
			desc: "no examples",
			results: []strategy.EvaluateResult{
				{ClientID: "c1", NumExamples: 0, Loss: 0.5},
			},
			err: pkgerrors.ErrMalformed,
		},
		{
			desc: "NaN loss",
			results: []strategy.EvaluateResult{
				{ClientID: "c1", NumExamples: 1, Loss: 0.5, Accuracy: 0.2},
				{ClientID: "c2", NumExamples: 1, Loss: math.NaN(), Accuracy: 0.2},
			},
			err: pkgerrors.ErrMalformed,
		},
		{
			desc: "infinite accuracy",
			results: []strategy.EvaluateResult{
				{ClientID: "c1", NumExamples: 1, Loss: 0.5, Accuracy: math.Inf(1)},
			},
			err: pkgerrors.ErrMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			f := newFixture(t, strategy.Config{AcceptFailures: tc.acceptFailures})

			agg, err := f.svc.AggregateEvaluate(ctx, 1, tc.results, tc.failures)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)

			if tc.loss == nil {
				assert.Nil(t, agg.Loss)
				assert.Empty(t, agg.Metrics)

				return
			}
			require.NotNil(t, agg.Loss)
			assert.InDelta(t, *tc.loss, *agg.Loss, 1e-12)
			assert.InDelta(t, tc.accuracy, agg.Metrics["accuracy"], 1e-12)
		})
	}
}

func TestCheckpoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, strategy.Config{})

	_, err := f.svc.GetCheckpoint(ctx, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	for round := uint64(1); round <= 3; round++ {
		_, err := f.svc.AggregateFit(ctx, round, []strategy.FitResult{
			{ClientID: "c1", Parameters: stateDict(t, []string{"w"}, []float64{float64(round)}), NumExamples: 1},
		}, nil)
		require.NoError(t, err)
	}
	_, err = f.svc.AggregateEvaluate(ctx, 2, []strategy.EvaluateResult{
		{ClientID: "c1", NumExamples: 1, Loss: 0.25},
	}, nil)
	require.NoError(t, err)

	cp, err := f.svc.GetCheckpoint(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cp.Round)
	assert.Equal(t, fl.Weights{{Shape: []int{1}, Data: []float64{2}}}, weights(t, cp.Parameters))
	require.NotNil(t, cp.Loss)
	assert.Equal(t, 0.25, *cp.Loss)
	assert.False(t, cp.UpdatedAt.Before(cp.CreatedAt))

	page, err := f.svc.ListCheckpoints(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	require.Len(t, page.Checkpoints, 2)
	assert.Equal(t, uint64(2), page.Checkpoints[0].Round)
	assert.Equal(t, uint64(3), page.Checkpoints[1].Round)
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, strategy.Config{})

	var handler mqtt.Handler
	f.pubsub.On("Subscribe", mock.Anything, baseTopic+"/#", mock.Anything).
		Run(func(args mock.Arguments) {
			handler = args.Get(2).(mqtt.Handler)
		}).
		Return(nil)

	require.NoError(t, f.svc.Subscribe(ctx))
	require.NotNil(t, handler)

	cases := []struct {
		desc  string
		topic string
		msg   map[string]any
		err   error
	}{
		{
			desc:  "create client",
			topic: baseTopic + "/control/client/create",
			msg:   map[string]any{"client_id": "c1", "name": "edge-1"},
		},
		{
			desc:  "create client without id",
			topic: baseTopic + "/control/client/create",
			msg:   map[string]any{"name": "edge-2"},
			err:   pkgerrors.ErrEmptyKey,
		},
		{
			desc:  "heartbeat from known client",
			topic: baseTopic + "/control/client/alive",
			msg:   map[string]any{"client_id": "c1"},
		},
		{
			desc:  "heartbeat from unknown client",
			topic: baseTopic + "/control/client/alive",
			msg:   map[string]any{"client_id": "c9"},
			err:   pkgerrors.ErrNotFound,
		},
		{
			desc:  "unrelated topic",
			topic: baseTopic + "/control/client/c1/get_parameters",
			msg:   map[string]any{"request_id": "r1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := handler(tc.topic, tc.msg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			assert.NoError(t, err)
		})
	}

	page, err := f.svc.ListClients(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Clients, 1)
	assert.Equal(t, "edge-1", page.Clients[0].Name)
	assert.True(t, page.Clients[0].Alive)

	require.NoError(t, handler(baseTopic+"/control/client/delete", map[string]any{"client_id": "c1"}))
	assert.Equal(t, 0, f.clients.Num())
}

func ptr(v float64) *float64 {
	return &v
}
