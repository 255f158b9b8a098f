package client

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedavg/pkg/errors"
)

// recheckInterval bounds how long Sample sleeps between availability checks
// when no registration wakes it.
const recheckInterval = time.Second

var namegen = namegenerator.NewGenerator()

type Manager interface {
	// Register adds a client. An empty name is replaced by a generated one.
	Register(ctx context.Context, proxy Proxy, name string) (Client, error)
	Unregister(ctx context.Context, id string) error
	// Heartbeat records a liveness signal for a registered client.
	Heartbeat(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Client, error)
	List(ctx context.Context, offset, limit uint64) (ClientPage, error)
	// Num returns the number of live clients.
	Num() int
	// Sample waits until at least minNum clients are alive, then returns up
	// to num of them picked at random.
	Sample(ctx context.Context, num, minNum int) ([]Proxy, error)
}

type entry struct {
	info  Client
	proxy Proxy
}

type manager struct {
	mu      sync.Mutex
	clients map[string]*entry
	changed chan struct{}
}

func NewManager() Manager {
	return &manager{
		clients: make(map[string]*entry),
		changed: make(chan struct{}),
	}
}

func (m *manager) Register(_ context.Context, proxy Proxy, name string) (Client, error) {
	if proxy == nil || proxy.ID() == "" {
		return Client{}, errors.ErrEmptyKey
	}
	if name == "" {
		name = namegen.Generate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[proxy.ID()]; ok {
		return Client{}, errors.ErrEntityExists
	}

	now := time.Now()
	e := &entry{
		info: Client{
			ID:           proxy.ID(),
			Name:         name,
			RegisteredAt: now,
		},
		proxy: proxy,
	}
	e.info.beat(now)
	m.clients[proxy.ID()] = e
	m.notify()

	return e.info, nil
}

func (m *manager) Unregister(_ context.Context, id string) error {
	if id == "" {
		return errors.ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[id]; !ok {
		return errors.ErrNotFound
	}
	delete(m.clients, id)

	return nil
}

func (m *manager) Heartbeat(_ context.Context, id string) error {
	if id == "" {
		return errors.ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.clients[id]
	if !ok {
		return errors.ErrNotFound
	}
	e.info.beat(time.Now())
	m.notify()

	return nil
}

func (m *manager) Get(_ context.Context, id string) (Client, error) {
	if id == "" {
		return Client{}, errors.ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.clients[id]
	if !ok {
		return Client{}, errors.ErrNotFound
	}
	e.info.SetAlive()

	return e.info, nil
}

func (m *manager) List(_ context.Context, offset, limit uint64) (ClientPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	page := ClientPage{
		Offset:  offset,
		Limit:   limit,
		Total:   uint64(len(ids)),
		Clients: []Client{},
	}
	if offset >= page.Total {
		return page, nil
	}

	end := min(offset+limit, page.Total)
	for _, id := range ids[offset:end] {
		e := m.clients[id]
		e.info.SetAlive()
		page.Clients = append(page.Clients, e.info)
	}

	return page, nil
}

func (m *manager) Num() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.alive())
}

func (m *manager) Sample(ctx context.Context, num, minNum int) ([]Proxy, error) {
	if num <= 0 {
		return nil, nil
	}
	minNum = max(minNum, 1)

	ticker := time.NewTicker(recheckInterval)
	defer ticker.Stop()

	for {
		m.mu.Lock()
		alive := m.alive()
		changed := m.changed
		m.mu.Unlock()

		if len(alive) >= minNum {
			rand.Shuffle(len(alive), func(i, j int) {
				alive[i], alive[j] = alive[j], alive[i]
			})

			return alive[:min(num, len(alive))], nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.ErrUnavailable
		case <-changed:
		case <-ticker.C:
		}
	}
}

// alive must be called with mu held.
func (m *manager) alive() []Proxy {
	proxies := make([]Proxy, 0, len(m.clients))
	for _, e := range m.clients {
		e.info.SetAlive()
		if e.info.Alive {
			proxies = append(proxies, e.proxy)
		}
	}

	return proxies
}

// notify wakes every pending Sample. Must be called with mu held.
func (m *manager) notify() {
	close(m.changed)
	m.changed = make(chan struct{})
}
