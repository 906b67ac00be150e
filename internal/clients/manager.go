package clients

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
)

// Client represents the connections belonging to one logical remote client
type Client struct {
	Control  *websocket.Conn
	Watchers []*websocket.Conn
}

// Manager tracks multiple clients keyed by clientID
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewManager() *Manager {
	return &Manager{clients: make(map[string]*Client)}
}

func (m *Manager) getOrCreate(id string) *Client {
	c, ok := m.clients[id]
	if !ok {
		c = &Client{}
		m.clients[id] = c
	}
	return c
}

func (m *Manager) pruneLocked(id string) {
	if c, ok := m.clients[id]; ok && c.Control == nil && len(c.Watchers) == 0 {
		delete(m.clients, id)
	}
}

// SetControl installs conn as the control connection of id and returns the
// connection it replaced, if any.
func (m *Manager) SetControl(id string, conn *websocket.Conn) (old *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(id)
	if c.Control != nil && c.Control != conn {
		old = c.Control
	}
	c.Control = conn
	return
}

func (m *Manager) AddWatcher(id string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.getOrCreate(id)
	c.Watchers = append(c.Watchers, conn)
}

func (m *Manager) RemoveWatcher(id string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return
	}
	for i, w := range c.Watchers {
		if w == conn {
			c.Watchers = append(c.Watchers[:i], c.Watchers[i+1:]...)
			break
		}
	}
	m.pruneLocked(id)
}

func (m *Manager) RemoveControl(id string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return
	}
	if c.Control == conn {
		c.Control = nil
	}
	m.pruneLocked(id)
}

// Targets returns the watch connections of id, or its control connection
// when it has no watchers.
func (m *Manager) Targets(id string) []*websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil
	}
	if len(c.Watchers) > 0 {
		return append([]*websocket.Conn(nil), c.Watchers...)
	}
	if c.Control != nil {
		return []*websocket.Conn{c.Control}
	}
	return nil
}

// Conns returns every connection of id, control first.
func (m *Manager) Conns(id string) []*websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil
	}
	var out []*websocket.Conn
	if c.Control != nil {
		out = append(out, c.Control)
	}
	return append(out, c.Watchers...)
}

// ForEachClient executes fn with a snapshot of client IDs.
func (m *Manager) ForEachClient(fn func(id string)) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		fn(id)
	}
}

// Len is the number of known clients.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CloseAll closes every tracked connection and forgets all clients.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	var err error
	for _, c := range clients {
		if c.Control != nil {
			err = multierr.Append(err, c.Control.Close())
		}
		for _, w := range c.Watchers {
			err = multierr.Append(err, w.Close())
		}
	}
	return err
}
