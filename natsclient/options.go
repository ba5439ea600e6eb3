package natsclient

import (
	"log/slog"
	"time"
)

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientName sets the connection name reported to the server.
func WithClientName(name string) ClientOption {
	return func(c *Client) { c.clientName = name }
}

// WithMaxReconnects limits reconnection attempts. Negative means retry
// forever, which is the default.
func WithMaxReconnects(max int) ClientOption {
	return func(c *Client) { c.maxReconnects = max }
}

// WithReconnectWait sets the delay between reconnection attempts.
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.reconnectWait = d
		}
	}
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDrainTimeout sets the maximum time Close waits for in-flight
// messages to drain.
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithCredentials sets username/password authentication.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithToken sets token authentication.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithDisconnectCallback registers a callback invoked when the
// connection drops.
func WithDisconnectCallback(fn func(error)) ClientOption {
	return func(c *Client) { c.onDisconnect = fn }
}

// WithReconnectCallback registers a callback invoked after a successful
// reconnection.
func WithReconnectCallback(fn func()) ClientOption {
	return func(c *Client) { c.onReconnect = fn }
}
