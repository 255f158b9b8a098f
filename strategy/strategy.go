package strategy

import (
	"context"
	"time"

	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/serde"
)

// FitResult is what one client reported after local training.
type FitResult struct {
	ClientID    string           `json:"client_id"         cbor:"client_id"`
	Parameters  serde.Parameters `json:"parameters"        cbor:"parameters"`
	NumExamples uint64           `json:"num_examples"      cbor:"num_examples"`
	Metrics     map[string]any   `json:"metrics,omitempty" cbor:"metrics,omitempty"`
}

// EvaluateResult is what one client reported after evaluating the global
// model on its local data.
type EvaluateResult struct {
	ClientID    string         `json:"client_id"         cbor:"client_id"`
	NumExamples uint64         `json:"num_examples"      cbor:"num_examples"`
	Loss        float64        `json:"loss"              cbor:"loss"`
	Accuracy    float64        `json:"accuracy"          cbor:"accuracy"`
	Metrics     map[string]any `json:"metrics,omitempty" cbor:"metrics,omitempty"`
}

// Failure records a client that did not deliver a result in a round.
type Failure struct {
	ClientID string `json:"client_id" cbor:"client_id"`
	Error    string `json:"error"     cbor:"error"`
}

// FitAggregate is the outcome of fit aggregation. Parameters is nil when
// the round produced no update.
type FitAggregate struct {
	Parameters *serde.Parameters `json:"parameters"`
	Metrics    map[string]any    `json:"metrics"`
}

// EvaluateAggregate is the outcome of evaluation aggregation. Loss is nil
// when the round produced no result.
type EvaluateAggregate struct {
	Loss    *float64       `json:"loss"`
	Metrics map[string]any `json:"metrics"`
}

// Checkpoint is the last aggregated state of a round.
type Checkpoint struct {
	Round           uint64            `json:"round"`
	Parameters      *serde.Parameters `json:"parameters,omitempty"`
	FitMetrics      map[string]any    `json:"fit_metrics,omitempty"`
	Loss            *float64          `json:"loss,omitempty"`
	EvaluateMetrics map[string]any    `json:"evaluate_metrics,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type CheckpointPage struct {
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

type Config struct {
	// AcceptFailures lets a round aggregate the results it has even when
	// some clients failed.
	AcceptFailures bool
	// MinAvailableClients is the number of live clients InitializeParameters
	// waits for before sampling one.
	MinAvailableClients int
	// InitTimeout bounds the wait for clients in InitializeParameters.
	InitTimeout time.Duration
	// InitialParameters, when set, are returned by InitializeParameters
	// instead of asking a client.
	InitialParameters *serde.Parameters
	// BaseTopic prefixes every MQTT topic the service uses.
	BaseTopic string
}

type Service interface {
	// InitializeParameters returns the global model the first round starts from.
	InitializeParameters(ctx context.Context) (*serde.Parameters, error)

	// AggregateFit averages the clients' weights, weighted by their example counts.
	AggregateFit(ctx context.Context, round uint64, results []FitResult, failures []Failure) (FitAggregate, error)

	// AggregateEvaluate averages the clients' losses, weighted by their example counts.
	AggregateEvaluate(ctx context.Context, round uint64, results []EvaluateResult, failures []Failure) (EvaluateAggregate, error)

	GetCheckpoint(ctx context.Context, round uint64) (Checkpoint, error)
	ListCheckpoints(ctx context.Context, offset, limit uint64) (CheckpointPage, error)

	ListClients(ctx context.Context, offset, limit uint64) (client.ClientPage, error)

	// Subscribe listens for client control messages.
	Subscribe(ctx context.Context) error
}
