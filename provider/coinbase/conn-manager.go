package coinbase

import (
	"sync"

	"github.com/spooky-finn/marketsync/domain"
	"go.uber.org/zap"
)

// ConnectionManager keeps one StreamClient per url. The public and the private feed are different urls,
// so they end up on different connections sharing the same state.
type ConnectionManager struct {
	state   *domain.MarketState
	markets domain.MarketResolver
	sinks   []TradeSink
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[string]*StreamClient

	// connect opens a new client, replaced in tests.
	connect func(c *StreamClient) error
}

func NewConnectionManager(state *domain.MarketState, markets domain.MarketResolver, logger *zap.Logger, sinks ...TradeSink) *ConnectionManager {
	return &ConnectionManager{
		state:   state,
		markets: markets,
		sinks:   sinks,
		logger:  logger,
		clients: make(map[string]*StreamClient),
		connect: func(c *StreamClient) error { return c.Connect() },
	}
}

// Client returns the live client of url, connecting a new one when there is none.
func (m *ConnectionManager) Client(url string) (*StreamClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[url]; ok {
		if !c.isClosed() {
			return c, nil
		}
		delete(m.clients, url)
	}

	c := NewStreamClient(url, m.state, m.markets, m.logger, m.sinks...)
	if err := m.connect(c); err != nil {
		return nil, err
	}
	m.clients[url] = c
	m.logger.Info("stream client ready", zap.String("url", url), zap.Bool("authenticated", c.Authenticated()), zap.Int("clients", len(m.clients)))
	return c, nil
}

func (m *ConnectionManager) Close() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*StreamClient)
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
