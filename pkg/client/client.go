package client

import (
	"context"
	"time"

	"github.com/absmach/fedavg/pkg/serde"
)

const (
	aliveTimeout      = 10 * time.Second
	aliveHistoryLimit = 10
)

// Proxy is the strategy's handle on one remote training client.
type Proxy interface {
	ID() string
	GetParameters(ctx context.Context) (serde.Parameters, error)
}

type Client struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Alive        bool        `json:"alive"`
	AliveHistory []time.Time `json:"alive_history"`
	RegisteredAt time.Time   `json:"registered_at"`
}

func (c *Client) SetAlive() {
	if len(c.AliveHistory) > 0 {
		lastAlive := c.AliveHistory[len(c.AliveHistory)-1]
		if time.Since(lastAlive) <= aliveTimeout {
			c.Alive = true

			return
		}
	}
	c.Alive = false
}

func (c *Client) beat(at time.Time) {
	c.AliveHistory = append(c.AliveHistory, at)
	if len(c.AliveHistory) > aliveHistoryLimit {
		c.AliveHistory = c.AliveHistory[len(c.AliveHistory)-aliveHistoryLimit:]
	}
	c.SetAlive()
}

type ClientPage struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Clients []Client `json:"clients"`
}
