package coinbase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/recws-org/recws"
	"github.com/spooky-finn/marketsync/config"
	"github.com/spooky-finn/marketsync/domain"
	promclient "github.com/spooky-finn/marketsync/infrastructure/prometheus"
	"go.uber.org/zap"
)

const (
	pingDelay        = time.Second * 30
	readRetryBackoff = time.Millisecond * 250
	privateURLSuffix = "?"
)

// wsConn is the part of recws.RecConn the client uses.
type wsConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, message []byte, err error)
	IsConnected() bool
	Close()
}

// StreamClient owns one physical connection together with its router, subscriptions and dispatcher.
type StreamClient struct {
	url           string
	authenticated bool
	session       uuid.UUID

	conn    wsConn
	writeMu sync.Mutex

	router     *domain.ChannelRouter
	subs       *subscriptionRegistry
	dispatcher *Dispatcher
	logger     *zap.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

// IsPrivateURL reports whether url addresses the private feed.
func IsPrivateURL(url string) bool {
	return strings.HasSuffix(url, privateURLSuffix)
}

func NewStreamClient(
	url string,
	state *domain.MarketState,
	markets domain.MarketResolver,
	logger *zap.Logger,
	sinks ...TradeSink,
) *StreamClient {
	session := uuid.New()
	authenticated := IsPrivateURL(url)
	logger = logger.Named("stream-client").With(
		zap.String("session", session.String()),
		zap.Bool("authenticated", authenticated),
	)

	c := &StreamClient{
		url:           url,
		authenticated: authenticated,
		session:       session,
		router:        domain.NewChannelRouter(),
		subs:          newSubscriptionRegistry(),
		logger:        logger,
		closed:        make(chan struct{}),
	}
	c.dispatcher = NewDispatcher(authenticated, state, markets, c.router, c.subs, logger, sinks...)
	c.dispatcher.onError = c.onErrorFrame
	return c
}

func (c *StreamClient) URL() string { return c.url }

func (c *StreamClient) Authenticated() bool { return c.authenticated }

func (c *StreamClient) Router() *domain.ChannelRouter { return c.router }

func (c *StreamClient) Connect() error {
	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 5 * time.Second,
		KeepAliveTimeout: pingDelay,
		NonVerbose:       true,
		SubscribeHandler: func() error {
			go c.resubscribe()
			return nil
		},
	}

	conn.Dial(c.url, nil)
	c.attach(conn)
	c.logger.Info("connected to the coinbase stream websocket", zap.String("url", c.url))
	return nil
}

func (c *StreamClient) attach(conn wsConn) {
	c.conn = conn
	promclient.OpenConnectionsGauge.Inc()
	go c.read()
}

// Watch subscribes to sub's channel unless this connection already did, then waits for the next value on its hash.
func (c *StreamClient) Watch(ctx context.Context, sub *subscription) (any, error) {
	if c.isClosed() {
		return nil, domain.ErrNotConnected
	}

	// register first so a fast first response is not missed
	f := c.router.Register(sub.MessageHash)
	if c.isClosed() {
		// Close may have rejected the router just before Register
		c.router.Deregister(f)
		return nil, domain.ErrNotConnected
	}
	if c.subs.Add(sub) {
		// while recws is redialing the subscription waits for the resubscribe on connect
		if err := c.send(sub); err != nil && !errors.Is(err, domain.ErrNotConnected) {
			c.subs.Delete(sub.MessageHash)
			c.router.Deregister(f)
			return nil, err
		}
	}
	return c.router.Wait(ctx, f)
}

func (c *StreamClient) send(sub *subscription) error {
	request, err := sub.request()
	if err != nil {
		return err
	}
	if config.DebugMode {
		c.logger.Debug("subscribing", zap.String("message_hash", sub.MessageHash), zap.Any("request", redact(request)))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return domain.ErrNotConnected
	}
	if err := c.conn.WriteJSON(request); err != nil {
		return fmt.Errorf("failed to send subscribe msg for %s: %w", sub.MessageHash, err)
	}
	return nil
}

// resubscribe replays every subscription after recws re-established the connection.
func (c *StreamClient) resubscribe() {
	for _, sub := range c.subs.All() {
		if err := c.send(sub); err != nil {
			c.logger.Warn("resubscribe failed", zap.String("message_hash", sub.MessageHash), zap.Error(err))
		}
	}
}

func (c *StreamClient) read() {
	for {
		if c.isClosed() {
			return
		}

		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection closed by the venue, reconnecting", zap.Error(err))
			} else if !errors.Is(err, recws.ErrNotConnected) {
				c.logger.Warn("error while reading from connection", zap.Error(err))
			}

			select {
			case <-c.closed:
				return
			case <-time.After(readRetryBackoff):
			}
			continue
		}

		if msgType != websocket.TextMessage || c.isClosed() {
			continue
		}
		c.dispatcher.Handle(msg)
	}
}

// onErrorFrame runs on the read goroutine, so the client is closed before the next frame is dispatched.
func (c *StreamClient) onErrorFrame(err error) {
	// the venue answers a bad subscribe with an error frame, let the next watch try again
	for _, sub := range c.subs.All() {
		c.dispatcher.forget(sub)
	}
	if errors.Is(err, domain.ErrAuthentication) {
		c.Close()
	}
}

// Done is closed once the client is closed.
func (c *StreamClient) Done() <-chan struct{} {
	return c.closed
}

func (c *StreamClient) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Close shuts the connection and fails every waiter still registered on it.
func (c *StreamClient) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			c.conn.Close()
			promclient.OpenConnectionsGauge.Dec()
		}
		c.router.Reject(domain.ErrNotConnected)
		c.logger.Info("connection closed")
	})
}

func redact(request map[string]any) map[string]any {
	out := make(map[string]any, len(request))
	for k, v := range request {
		switch k {
		case "signature", "passphrase", "key":
			out[k] = "***"
		default:
			out[k] = v
		}
	}
	return out
}
