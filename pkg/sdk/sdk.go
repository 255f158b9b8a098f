package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const CTJSON string = "application/json"

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// InitializeParameters asks the strategy for the global model the first
	// round starts from.
	//
	// example:
	//  params, _ := sdk.InitializeParameters()
	//  fmt.Println(params.TensorType)
	InitializeParameters() (Parameters, error)

	// AggregateFit submits the training results of a round.
	//
	// example:
	//  req := sdk.FitRequest{
	//    Results: []sdk.FitResult{{ClientID: "c1", Parameters: params, NumExamples: 100}},
	//  }
	//  agg, _ := sdk.AggregateFit(1, req)
	//  fmt.Println(agg.Metrics)
	AggregateFit(round uint64, req FitRequest) (FitAggregate, error)

	// AggregateEvaluate submits the evaluation results of a round.
	//
	// example:
	//  req := sdk.EvaluateRequest{
	//    Results: []sdk.EvaluateResult{{ClientID: "c1", NumExamples: 100, Loss: 0.3}},
	//  }
	//  agg, _ := sdk.AggregateEvaluate(1, req)
	//  fmt.Println(*agg.Loss)
	AggregateEvaluate(round uint64, req EvaluateRequest) (EvaluateAggregate, error)

	// GetCheckpoint gets the aggregated state of a round.
	//
	// example:
	//  cp, _ := sdk.GetCheckpoint(3)
	//  fmt.Println(cp)
	GetCheckpoint(round uint64) (Checkpoint, error)

	// ListCheckpoints lists checkpoints ordered by round.
	//
	// example:
	//  page, _ := sdk.ListCheckpoints(0, 10)
	//  fmt.Println(page)
	ListCheckpoints(offset uint64, limit uint64) (CheckpointPage, error)

	// ListClients lists the registered training clients.
	//
	// example:
	//  page, _ := sdk.ListClients(0, 10)
	//  fmt.Println(page)
	ListClients(offset uint64, limit uint64) (ClientPage, error)
}

type fedSDK struct {
	strategyURL string
	client      *http.Client
}

type Config struct {
	StrategyURL     string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		strategyURL: cfg.StrategyURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *fedSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}
	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e struct {
			Err string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("unexpected response code %d: %s", resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
