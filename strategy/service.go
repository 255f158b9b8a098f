package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/absmach/fedavg/pkg/client"
	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/pkg/storage"
)

const (
	defInitTimeout = 30 * time.Second

	roundsTopic     = "fl/rounds"
	aggregatedTopic = "aggregated"
	evaluatedTopic  = "evaluated"
)

type service struct {
	cfg         Config
	clients     client.Manager
	transport   *client.MQTTTransport
	codecs      *serde.Registry
	aggregator  fl.Aggregator
	checkpoints storage.Storage[Checkpoint]
	publisher   mqtt.PubSub
	logger      *slog.Logger

	mu         sync.RWMutex
	template   *serde.Model
	tensorType string

	// roundMu serializes read-modify-write of checkpoints.
	roundMu sync.Mutex
}

func NewService(
	cfg Config,
	clients client.Manager,
	transport *client.MQTTTransport,
	codecs *serde.Registry,
	aggregator fl.Aggregator,
	checkpoints storage.Storage[Checkpoint],
	publisher mqtt.PubSub,
	logger *slog.Logger,
) Service {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = defInitTimeout
	}
	if cfg.MinAvailableClients <= 0 {
		cfg.MinAvailableClients = 1
	}

	return &service{
		cfg:         cfg,
		clients:     clients,
		transport:   transport,
		codecs:      codecs,
		aggregator:  aggregator,
		checkpoints: checkpoints,
		publisher:   publisher,
		logger:      logger,
	}
}

func (svc *service) InitializeParameters(ctx context.Context) (*serde.Parameters, error) {
	var params serde.Parameters
	switch {
	case svc.cfg.InitialParameters != nil:
		params = *svc.cfg.InitialParameters
	default:
		ctx, cancel := context.WithTimeout(ctx, svc.cfg.InitTimeout)
		defer cancel()

		proxies, err := svc.clients.Sample(ctx, 1, svc.cfg.MinAvailableClients)
		if err != nil {
			return nil, err
		}
		if len(proxies) == 0 {
			return nil, pkgerrors.ErrUnavailable
		}

		params, err = proxies[0].GetParameters(ctx)
		if err != nil {
			return nil, err
		}
		svc.logger.InfoContext(ctx, "received initial parameters", slog.String("client_id", proxies[0].ID()))
	}

	codec, err := svc.codecs.Lookup(params.TensorType)
	if err != nil {
		// Parameters of an unknown convention are handed back untouched.
		svc.logger.WarnContext(ctx, "no codec for initial parameters", slog.String("tensor_type", params.TensorType))

		return &params, nil
	}

	tmpl, err := codec.Template(params)
	if err != nil {
		return nil, errors.Join(pkgerrors.ErrMalformed, err)
	}
	svc.setTemplate(params.TensorType, tmpl)

	return &params, nil
}

func (svc *service) AggregateFit(ctx context.Context, round uint64, results []FitResult, failures []Failure) (FitAggregate, error) {
	if len(results) == 0 {
		return FitAggregate{Metrics: map[string]any{}}, nil
	}
	if len(failures) > 0 && !svc.cfg.AcceptFailures {
		svc.logger.WarnContext(ctx, "dropping round with failures",
			slog.Uint64("round", round),
			slog.Int("failures", len(failures)),
		)

		return FitAggregate{Metrics: map[string]any{}}, nil
	}

	tensorType := results[0].Parameters.TensorType
	updates := make([]fl.WeightedWeights, len(results))
	var total uint64
	for i, r := range results {
		if r.Parameters.TensorType != tensorType {
			return FitAggregate{}, fmt.Errorf("%w: client %q sent %q, round uses %q",
				pkgerrors.ErrMalformed, r.ClientID, r.Parameters.TensorType, tensorType)
		}
		w, err := svc.codecs.ToWeights(r.Parameters)
		if err != nil {
			return FitAggregate{}, errors.Join(pkgerrors.ErrMalformed, fmt.Errorf("client %q: %w", r.ClientID, err))
		}
		updates[i] = fl.WeightedWeights{Weights: w, NumExamples: r.NumExamples}
		total += r.NumExamples
	}

	agg, err := svc.aggregator.Aggregate(updates)
	if err != nil {
		return FitAggregate{}, errors.Join(pkgerrors.ErrMalformed, err)
	}

	codec, err := svc.codecs.Lookup(tensorType)
	if err != nil {
		return FitAggregate{}, errors.Join(pkgerrors.ErrMalformed, err)
	}
	tmpl, err := svc.templateFor(codec, results[0].Parameters)
	if err != nil {
		return FitAggregate{}, errors.Join(pkgerrors.ErrMalformed, err)
	}

	params, err := codec.FromWeights(agg, tmpl)
	if err != nil {
		return FitAggregate{}, errors.Join(pkgerrors.ErrMalformed, err)
	}

	metrics := map[string]any{
		"num_clients":    len(results),
		"num_failures":   len(failures),
		"total_examples": total,
	}

	if err := svc.saveCheckpoint(ctx, round, func(cp *Checkpoint) {
		cp.Parameters = &params
		cp.FitMetrics = metrics
	}); err != nil {
		return FitAggregate{}, err
	}

	svc.notify(ctx, round, aggregatedTopic, map[string]any{
		"round":          round,
		"tensor_type":    params.TensorType,
		"num_clients":    len(results),
		"total_examples": total,
	})

	return FitAggregate{Parameters: &params, Metrics: metrics}, nil
}

func (svc *service) AggregateEvaluate(ctx context.Context, round uint64, results []EvaluateResult, failures []Failure) (EvaluateAggregate, error) {
	if len(results) == 0 {
		return EvaluateAggregate{Metrics: map[string]any{}}, nil
	}
	if len(failures) > 0 && !svc.cfg.AcceptFailures {
		svc.logger.WarnContext(ctx, "dropping evaluation with failures",
			slog.Uint64("round", round),
			slog.Int("failures", len(failures)),
		)

		return EvaluateAggregate{Metrics: map[string]any{}}, nil
	}

	triples := make([]fl.EvaluateTriple, len(results))
	var total uint64
	for i, r := range results {
		triples[i] = fl.EvaluateTriple{
			NumExamples: r.NumExamples,
			Loss:        r.Loss,
			Accuracy:    r.Accuracy,
		}
		total += r.NumExamples
	}

	loss, err := fl.WeightedLossAvg(triples)
	if err != nil {
		return EvaluateAggregate{}, errors.Join(pkgerrors.ErrMalformed, err)
	}
	accuracy, err := fl.WeightedAccuracyAvg(triples)
	if err != nil {
		return EvaluateAggregate{}, errors.Join(pkgerrors.ErrMalformed, err)
	}

	metrics := map[string]any{
		"accuracy":       accuracy,
		"num_clients":    len(results),
		"num_failures":   len(failures),
		"total_examples": total,
	}

	if err := svc.saveCheckpoint(ctx, round, func(cp *Checkpoint) {
		cp.Loss = &loss
		cp.EvaluateMetrics = metrics
	}); err != nil {
		return EvaluateAggregate{}, err
	}

	svc.notify(ctx, round, evaluatedTopic, map[string]any{
		"round":    round,
		"loss":     loss,
		"accuracy": accuracy,
	})

	return EvaluateAggregate{Loss: &loss, Metrics: metrics}, nil
}

func (svc *service) GetCheckpoint(ctx context.Context, round uint64) (Checkpoint, error) {
	return svc.checkpoints.Get(ctx, checkpointKey(round))
}

func (svc *service) ListCheckpoints(ctx context.Context, offset, limit uint64) (CheckpointPage, error) {
	cps, total, err := svc.checkpoints.List(ctx, offset, limit)
	if err != nil {
		return CheckpointPage{}, err
	}
	if cps == nil {
		cps = []Checkpoint{}
	}

	return CheckpointPage{
		Offset:      offset,
		Limit:       limit,
		Total:       total,
		Checkpoints: cps,
	}, nil
}

func (svc *service) ListClients(ctx context.Context, offset, limit uint64) (client.ClientPage, error) {
	return svc.clients.List(ctx, offset, limit)
}

func (svc *service) Subscribe(ctx context.Context) error {
	topic := mqtt.Topic(svc.cfg.BaseTopic, "#")

	return svc.publisher.Subscribe(ctx, topic, svc.handle(ctx))
}

func (svc *service) setTemplate(tensorType string, tmpl *serde.Model) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.template = tmpl
	svc.tensorType = tensorType
}

// templateFor returns the template captured for the codec's tensor type. When
// none was captured the template is taken from p and kept for later rounds.
func (svc *service) templateFor(codec serde.Codec, p serde.Parameters) (*serde.Model, error) {
	svc.mu.RLock()
	tmpl, tensorType := svc.template, svc.tensorType
	svc.mu.RUnlock()

	if tmpl != nil && tensorType == codec.TensorType() {
		return tmpl, nil
	}

	tmpl, err := codec.Template(p)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	if svc.template == nil {
		svc.template = tmpl
		svc.tensorType = codec.TensorType()
	}
	svc.mu.Unlock()

	return tmpl, nil
}

func (svc *service) saveCheckpoint(ctx context.Context, round uint64, apply func(cp *Checkpoint)) error {
	svc.roundMu.Lock()
	defer svc.roundMu.Unlock()

	key := checkpointKey(round)
	now := time.Now()

	cp, err := svc.checkpoints.Get(ctx, key)
	switch {
	case err == nil:
		apply(&cp)
		cp.UpdatedAt = now

		return svc.checkpoints.Update(ctx, key, cp)
	case errors.Is(err, pkgerrors.ErrNotFound):
		cp = Checkpoint{Round: round, CreatedAt: now, UpdatedAt: now}
		apply(&cp)

		return svc.checkpoints.Create(ctx, key, cp)
	default:
		return err
	}
}

func (svc *service) notify(ctx context.Context, round uint64, event string, payload map[string]any) {
	if svc.publisher == nil {
		return
	}

	topic := mqtt.Topic(svc.cfg.BaseTopic, roundsTopic, strconv.FormatUint(round, 10), event)
	if err := svc.publisher.Publish(ctx, topic, payload); err != nil {
		svc.logger.WarnContext(ctx, "failed to publish round event",
			slog.String("topic", topic),
			slog.Any("error", err),
		)
	}
}

func checkpointKey(round uint64) string {
	return fmt.Sprintf("%020d", round)
}
