package api

import (
	"net/http"

	"github.com/absmach/fedavg/pkg/client"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/absmach/fedavg/strategy"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*parametersRes)(nil)
	_ supermq.Response = (*fitRes)(nil)
	_ supermq.Response = (*evaluateRes)(nil)
	_ supermq.Response = (*checkpointRes)(nil)
	_ supermq.Response = (*listCheckpointsRes)(nil)
	_ supermq.Response = (*listClientsRes)(nil)
)

type parametersRes struct {
	*serde.Parameters
}

func (res parametersRes) Code() int {
	return http.StatusOK
}

func (res parametersRes) Headers() map[string]string {
	return map[string]string{}
}

func (res parametersRes) Empty() bool {
	return res.Parameters == nil
}

type fitRes struct {
	strategy.FitAggregate
}

func (res fitRes) Code() int {
	return http.StatusOK
}

func (res fitRes) Headers() map[string]string {
	return map[string]string{}
}

func (res fitRes) Empty() bool {
	return false
}

type evaluateRes struct {
	strategy.EvaluateAggregate
}

func (res evaluateRes) Code() int {
	return http.StatusOK
}

func (res evaluateRes) Headers() map[string]string {
	return map[string]string{}
}

func (res evaluateRes) Empty() bool {
	return false
}

type checkpointRes struct {
	strategy.Checkpoint
}

func (res checkpointRes) Code() int {
	return http.StatusOK
}

func (res checkpointRes) Headers() map[string]string {
	return map[string]string{}
}

func (res checkpointRes) Empty() bool {
	return false
}

type listCheckpointsRes struct {
	strategy.CheckpointPage
}

func (res listCheckpointsRes) Code() int {
	return http.StatusOK
}

func (res listCheckpointsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listCheckpointsRes) Empty() bool {
	return false
}

type listClientsRes struct {
	client.ClientPage
}

func (res listClientsRes) Code() int {
	return http.StatusOK
}

func (res listClientsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listClientsRes) Empty() bool {
	return false
}
