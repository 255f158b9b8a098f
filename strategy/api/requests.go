package api

import (
	"github.com/absmach/fedavg/pkg/api"
	"github.com/absmach/fedavg/strategy"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type fitReq struct {
	round    uint64
	Results  []strategy.FitResult `json:"results"  cbor:"results"`
	Failures []strategy.Failure   `json:"failures" cbor:"failures"`
}

func (req *fitReq) validate() error {
	if req.round == 0 {
		return apiutil.ErrMissingID
	}

	return nil
}

type evaluateReq struct {
	round    uint64
	Results  []strategy.EvaluateResult `json:"results"  cbor:"results"`
	Failures []strategy.Failure        `json:"failures" cbor:"failures"`
}

func (req *evaluateReq) validate() error {
	if req.round == 0 {
		return apiutil.ErrMissingID
	}

	return nil
}

type roundReq struct {
	round uint64
}

func (req *roundReq) validate() error {
	if req.round == 0 {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (req *listEntityReq) validate() error {
	if req.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}
