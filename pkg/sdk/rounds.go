package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	initializeEndpoint = "/parameters/initialize"
	roundsEndpoint     = "/rounds"
)

type Parameters struct {
	Tensors    [][]byte `json:"tensors"`
	TensorType string   `json:"tensor_type"`
}

type FitResult struct {
	ClientID    string         `json:"client_id"`
	Parameters  Parameters     `json:"parameters"`
	NumExamples uint64         `json:"num_examples"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

type EvaluateResult struct {
	ClientID    string         `json:"client_id"`
	NumExamples uint64         `json:"num_examples"`
	Loss        float64        `json:"loss"`
	Accuracy    float64        `json:"accuracy"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

type Failure struct {
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

type FitRequest struct {
	Results  []FitResult `json:"results"`
	Failures []Failure   `json:"failures,omitempty"`
}

type EvaluateRequest struct {
	Results  []EvaluateResult `json:"results"`
	Failures []Failure        `json:"failures,omitempty"`
}

type FitAggregate struct {
	Parameters *Parameters    `json:"parameters"`
	Metrics    map[string]any `json:"metrics"`
}

type EvaluateAggregate struct {
	Loss    *float64       `json:"loss"`
	Metrics map[string]any `json:"metrics"`
}

func (sdk *fedSDK) InitializeParameters() (Parameters, error) {
	url := sdk.strategyURL + initializeEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusOK)
	if err != nil {
		return Parameters{}, err
	}

	var p Parameters
	if err := json.Unmarshal(body, &p); err != nil {
		return Parameters{}, err
	}

	return p, nil
}

func (sdk *fedSDK) AggregateFit(round uint64, req FitRequest) (FitAggregate, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return FitAggregate{}, err
	}

	url := fmt.Sprintf("%s%s/%d/fit", sdk.strategyURL, roundsEndpoint, round)

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK)
	if err != nil {
		return FitAggregate{}, err
	}

	var agg FitAggregate
	if err := json.Unmarshal(body, &agg); err != nil {
		return FitAggregate{}, err
	}

	return agg, nil
}

func (sdk *fedSDK) AggregateEvaluate(round uint64, req EvaluateRequest) (EvaluateAggregate, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return EvaluateAggregate{}, err
	}

	url := fmt.Sprintf("%s%s/%d/evaluate", sdk.strategyURL, roundsEndpoint, round)

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK)
	if err != nil {
		return EvaluateAggregate{}, err
	}

	var agg EvaluateAggregate
	if err := json.Unmarshal(body, &agg); err != nil {
		return EvaluateAggregate{}, err
	}

	return agg, nil
}
