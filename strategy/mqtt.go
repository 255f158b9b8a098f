package strategy

import (
	"context"
	"log/slog"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/mqtt"
)

const (
	createTopic     = "control/client/create"
	aliveTopic      = "control/client/alive"
	deleteTopic     = "control/client/delete"
	parametersTopic = "control/client/parameters"
)

func (svc *service) handle(ctx context.Context) mqtt.Handler {
	base := svc.cfg.BaseTopic

	return func(topic string, msg map[string]any) error {
		switch topic {
		case mqtt.Topic(base, createTopic):
			if err := svc.createClient(ctx, msg); err != nil {
				return err
			}
			svc.logger.InfoContext(ctx, "successfully registered client")
		case mqtt.Topic(base, aliveTopic):
			return svc.updateLiveness(ctx, msg)
		case mqtt.Topic(base, deleteTopic):
			id, err := clientID(msg)
			if err != nil {
				return err
			}

			return svc.clients.Unregister(ctx, id)
		case mqtt.Topic(base, parametersTopic):
			return svc.transport.HandleReply(msg)
		}

		return nil
	}
}

func (svc *service) createClient(ctx context.Context, msg map[string]any) error {
	id, err := clientID(msg)
	if err != nil {
		return err
	}
	name, ok := msg["name"].(string)
	if !ok {
		name = ""
	}

	c, err := svc.clients.Register(ctx, svc.transport.Proxy(id), name)
	if err != nil {
		return err
	}
	svc.logger.DebugContext(ctx, "client registered", slog.String("id", c.ID), slog.String("name", c.Name))

	return nil
}

func (svc *service) updateLiveness(ctx context.Context, msg map[string]any) error {
	id, err := clientID(msg)
	if err != nil {
		return err
	}

	return svc.clients.Heartbeat(ctx, id)
}

func clientID(msg map[string]any) (string, error) {
	id, ok := msg["client_id"].(string)
	if !ok || id == "" {
		return "", pkgerrors.ErrEmptyKey
	}

	return id, nil
}
