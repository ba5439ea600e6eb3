package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/meganemura/norikra/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status holds runtime status information for the NATS client
type Status struct {
	Status     ConnectionStatus
	Reconnects int32
	RTT        time.Duration
}

// Client manages a single NATS connection for event ingestion and result
// publishing.
type Client struct {
	url    string
	logger *slog.Logger

	status     atomic.Value // stores ConnectionStatus
	reconnects atomic.Int32

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	clientName    string

	// Authentication
	username string
	password string
	token    string

	// Callbacks
	onDisconnect func(error)
	onReconnect  func()
}

// NewClient creates a NATS client for the given server URL. The client
// does not connect until Connect is called.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "NATSClient", "NewClient", "server URL validation")
	}

	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1, // reconnect forever
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  10 * time.Second,
	}
	c.status.Store(StatusDisconnected)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// IsConnected reports whether the underlying connection is usable.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Reconnects returns the number of reconnections since Connect.
func (c *Client) Reconnects() int32 { return c.reconnects.Load() }

// GetStatus returns a snapshot of the connection state.
func (c *Client) GetStatus() *Status {
	status := &Status{
		Status:     c.Status(),
		Reconnects: c.reconnects.Load(),
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil && conn.IsConnected() {
		if rtt, err := conn.RTT(); err == nil {
			status.RTT = rtt
		}
	}
	return status
}

func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// Connect establishes the connection to the NATS server. Connect blocks
// until the connection is up or ctx expires.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(errors.ErrConnectionTimeout, "NATSClient", "Connect", c.url)
	case r := <-done:
		if r.err != nil {
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(r.err, "NATSClient", "Connect", c.url)
		}
		c.mu.Lock()
		c.conn = r.conn
		c.mu.Unlock()
		c.setStatus(StatusConnected)
		c.logger.Info("connected to NATS", "url", c.url)
		return nil
	}
}

// Publish sends a message on a subject. Fails fast when disconnected.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSClient", "Publish", subject)
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "NATSClient", "Publish", subject)
	}
	return nil
}

// Subscribe registers a handler for a subject. Wildcard subjects are
// supported; the handler receives the concrete subject of each message.
func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "NATSClient", "Subscribe", subject)
	}
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return errors.Wrap(errors.ErrSubscriptionFailed, "NATSClient", "Subscribe", subject)
	}
	c.subs = append(c.subs, sub)
	c.logger.Debug("subscribed", "subject", subject)
	return nil
}

// Close drains subscriptions and closes the connection. Safe to call
// multiple times.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn = nil
	c.subs = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.setStatus(StatusClosed)

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe", "subject", sub.Subject, "error", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- conn.Drain() }()
	select {
	case <-ctx.Done():
		conn.Close()
		return errors.WrapTransient(ctx.Err(), "NATSClient", "Close", "drain")
	case err := <-done:
		if err != nil {
			conn.Close()
			return errors.WrapTransient(err, "NATSClient", "Close", "drain")
		}
	}

	c.logger.Info("NATS connection closed", "url", c.url)
	return nil
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.Status() == StatusClosed {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "url", c.url, "error", err)
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.reconnects.Add(1)
	c.setStatus(StatusConnected)
	c.logger.Info("NATS reconnected", "url", conn.ConnectedUrl(), "reconnects", c.reconnects.Load())
	if c.onReconnect != nil {
		c.onReconnect()
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if c.Status() != StatusClosed {
		c.setStatus(StatusDisconnected)
		c.logger.Warn("NATS connection closed unexpectedly", "url", c.url)
	}
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Error("NATS subscription error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Error("NATS async error", "error", err)
}
