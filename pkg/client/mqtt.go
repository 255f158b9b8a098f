package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/absmach/fedavg/pkg/serde"
	"github.com/google/uuid"
)

const (
	controlTopic       = "control/client"
	getParametersTopic = "get_parameters"
)

var errUnknownRequest = errors.New("no pending request for reply")

// ParametersReply is what a client publishes in answer to a parameters
// request. Tensors are base64 encoded by JSON.
type ParametersReply struct {
	RequestID  string   `json:"request_id"`
	ClientID   string   `json:"client_id"`
	TensorType string   `json:"tensor_type"`
	Tensors    [][]byte `json:"tensors"`
	Error      string   `json:"error,omitempty"`
}

type reply struct {
	params serde.Parameters
	err    error
}

// MQTTTransport issues parameter requests to clients over MQTT and matches
// the replies fed to HandleReply.
type MQTTTransport struct {
	pubsub    mqtt.PubSub
	baseTopic string

	mu      sync.Mutex
	pending map[string]chan reply
}

func NewMQTTTransport(pubsub mqtt.PubSub, baseTopic string) *MQTTTransport {
	return &MQTTTransport{
		pubsub:    pubsub,
		baseTopic: baseTopic,
		pending:   make(map[string]chan reply),
	}
}

// Proxy returns a proxy for the client with the given id.
func (t *MQTTTransport) Proxy(clientID string) Proxy {
	return &mqttProxy{id: clientID, transport: t}
}

// HandleReply resolves the pending request the message answers.
func (t *MQTTTransport) HandleReply(msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var r ParametersReply
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("invalid parameters reply: %w", err)
	}

	t.mu.Lock()
	ch, ok := t.pending[r.RequestID]
	delete(t.pending, r.RequestID)
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", errUnknownRequest, r.RequestID)
	}

	res := reply{
		params: serde.Parameters{
			Tensors:    r.Tensors,
			TensorType: r.TensorType,
		},
	}
	if r.Error != "" {
		res = reply{err: fmt.Errorf("client %s: %s", r.ClientID, r.Error)}
	}
	ch <- res

	return nil
}

func (t *MQTTTransport) request(ctx context.Context, clientID string) (serde.Parameters, error) {
	requestID := uuid.NewString()
	ch := make(chan reply, 1)

	t.mu.Lock()
	t.pending[requestID] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, requestID)
		t.mu.Unlock()
	}()

	topic := mqtt.Topic(t.baseTopic, controlTopic, clientID, getParametersTopic)
	if err := t.pubsub.Publish(ctx, topic, map[string]any{"request_id": requestID}); err != nil {
		return serde.Parameters{}, fmt.Errorf("failed to request parameters from client %s: %w", clientID, err)
	}

	select {
	case r := <-ch:
		return r.params, r.err
	case <-ctx.Done():
		return serde.Parameters{}, ctx.Err()
	}
}

type mqttProxy struct {
	id        string
	transport *MQTTTransport
}

func (p *mqttProxy) ID() string {
	return p.id
}

func (p *mqttProxy) GetParameters(ctx context.Context) (serde.Parameters, error) {
	return p.transport.request(ctx, p.id)
}
