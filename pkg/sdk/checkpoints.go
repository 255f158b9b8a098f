package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	checkpointsEndpoint = "/checkpoints"
	clientsEndpoint     = "/clients"
)

type Checkpoint struct {
	Round           uint64         `json:"round"`
	Parameters      *Parameters    `json:"parameters,omitempty"`
	FitMetrics      map[string]any `json:"fit_metrics,omitempty"`
	Loss            *float64       `json:"loss,omitempty"`
	EvaluateMetrics map[string]any `json:"evaluate_metrics,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type CheckpointPage struct {
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

type Client struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Alive        bool        `json:"alive"`
	AliveHistory []time.Time `json:"alive_history"`
	RegisteredAt time.Time   `json:"registered_at"`
}

type ClientPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Clients []Client `json:"clients"`
}

func (sdk *fedSDK) GetCheckpoint(round uint64) (Checkpoint, error) {
	url := fmt.Sprintf("%s%s/%d", sdk.strategyURL, checkpointsEndpoint, round)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Checkpoint{}, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(body, &cp); err != nil {
		return Checkpoint{}, err
	}

	return cp, nil
}

func (sdk *fedSDK) ListCheckpoints(offset, limit uint64) (CheckpointPage, error) {
	url := sdk.strategyURL + checkpointsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return CheckpointPage{}, err
	}

	var page CheckpointPage
	if err := json.Unmarshal(body, &page); err != nil {
		return CheckpointPage{}, err
	}

	return page, nil
}

func (sdk *fedSDK) ListClients(offset, limit uint64) (ClientPage, error) {
	url := sdk.strategyURL + clientsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return ClientPage{}, err
	}

	var page ClientPage
	if err := json.Unmarshal(body, &page); err != nil {
		return ClientPage{}, err
	}

	return page, nil
}
