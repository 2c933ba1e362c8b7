package assistant

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lumivoice/voice-gateway/internal/transport/codec"
)

const (
	baseRetryDelay     = time.Second
	maxRetryDelay      = 10 * time.Second
	defaultDialTimeout = 10 * time.Second
)

// Client maintains one live connection to the assistant backend. Failed
// connects and lost connections are retried with capped exponential
// backoff; Stop and ForceReconnect detach the auto-reconnect path before
// tearing the connection down.
type Client struct {
	cfg    Config
	logger *zap.Logger
	dialer Dialer

	mu         sync.Mutex
	state      State
	conn       Conn
	callbacks  Callbacks
	attempts   int
	retryTimer *time.Timer

	// generation tags the current connection epoch. Stop, ForceReconnect
	// and Start bump it, turning stale read-loop and timer callbacks into
	// no-ops.
	generation uint64

	writeMu sync.Mutex

	afterFunc func(d time.Duration, fn func()) *time.Timer
}

// NewClient builds an idle transport. Start must be called to connect.
func NewClient(cfg Config, callbacks Callbacks, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Client{
		cfg:       cfg,
		logger:    logger,
		dialer:    websocketDialer{},
		state:     StateIdle,
		callbacks: callbacks,
		afterFunc: time.AfterFunc,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCallbacks replaces the notification handlers. The transport reads the
// latest handlers at event-fire time, so replacement never reconnects.
func (c *Client) SetCallbacks(callbacks Callbacks) {
	c.mu.Lock()
	c.callbacks = callbacks
	c.mu.Unlock()
}

// Start begins connecting unless a connection is already being established
// or open. Calling it in those states is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.cancelRetryLocked()
	c.generation++
	gen := c.generation
	c.state = StateConnecting
	c.mu.Unlock()

	go c.connect(gen)
}

// Send frames and transmits the payload if the connection is open.
// Otherwise the payload is silently dropped: the transport keeps no queue.
func (c *Client) Send(payload any) {
	c.mu.Lock()
	gen := c.generation
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Debug("assistant send dropped, connection not open")
		return
	}

	data, err := codec.Encode(payload)
	if err != nil {
		c.notifyError(gen, err)
		return
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		// Write failures are reported but do not close the connection;
		// teardown follows the read loop's close signal.
		c.logger.Warn("assistant send failed", zap.Error(err))
		c.notifyError(gen, err)
	}
}

// ForceReconnect cancels any pending retry, resets the attempt counter and
// reconnects immediately without going through the auto-reconnect path.
func (c *Client) ForceReconnect() {
	c.mu.Lock()
	c.cancelRetryLocked()
	c.attempts = 0
	c.generation++
	c.teardownLocked()
	c.mu.Unlock()

	c.logger.Info("assistant force reconnect")
	c.Start()
}

// Stop cancels any pending retry and tears down the connection without
// triggering auto-reconnect. The transport stays idle until Start is
// called again; callbacks from the torn-down connection no longer fire.
func (c *Client) Stop() {
	c.mu.Lock()
	c.cancelRetryLocked()
	c.generation++
	c.teardownLocked()
	c.mu.Unlock()

	c.logger.Info("assistant transport stopped")
}

func (c *Client) connect(gen uint64) {
	c.logger.Info("assistant connecting",
		zap.String("backend_url", c.cfg.BackendURL),
		zap.String("client_id", c.cfg.ClientID),
		zap.String("device_id", c.cfg.DeviceID),
	)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()

	if c.cfg.BackendURL == "" {
		c.connectFailed(gen, errors.New("assistant backend url is empty"))
		return
	}

	conn, err := c.dialer.Dial(ctx, c.cfg.BackendURL, c.headers())
	if err != nil {
		c.connectFailed(gen, err)
		return
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	callbacks := c.callbacks
	c.mu.Unlock()

	c.logger.Info("assistant connected", zap.String("backend_url", c.cfg.BackendURL))
	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}

	go c.readLoop(gen, conn)
}

func (c *Client) connectFailed(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	callbacks := c.callbacks
	c.scheduleRetryLocked()
	c.mu.Unlock()

	c.logger.Warn("assistant connect failed", zap.Error(err))
	if callbacks.OnError != nil {
		callbacks.OnError(err)
	}
	// A failed dial is an unplanned entry into Closed, so the closed
	// notification fires here just as it does for a lost connection.
	if callbacks.OnClosed != nil {
		callbacks.OnClosed(err)
	}
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(gen, conn, err)
			return
		}

		payload, decodeErr := codec.Decode(data)
		if decodeErr != nil {
			// A malformed frame is not a connection failure; report it
			// and keep reading.
			c.notifyError(gen, decodeErr)
			continue
		}

		c.mu.Lock()
		stale := gen != c.generation
		callbacks := c.callbacks
		c.mu.Unlock()
		if stale {
			return
		}
		if callbacks.OnMessage != nil {
			callbacks.OnMessage(payload)
		}
	}
}

func (c *Client) connectionLost(gen uint64, conn Conn, err error) {
	c.mu.Lock()
	if gen != c.generation {
		// Stop or ForceReconnect already detached this connection.
		c.mu.Unlock()
		return
	}
	if c.conn == conn {
		c.conn = nil
	}
	_ = conn.Close()
	c.state = StateClosed
	callbacks := c.callbacks
	c.scheduleRetryLocked()
	c.mu.Unlock()

	c.logger.Warn("assistant connection lost", zap.Error(err))
	if callbacks.OnClosed != nil {
		callbacks.OnClosed(err)
	}
}

// scheduleRetryLocked arms the one-shot reconnect timer. At most one retry
// timer exists at a time; callers hold c.mu.
func (c *Client) scheduleRetryLocked() {
	delay := retryDelay(c.attempts)
	c.logger.Info("assistant retry scheduled",
		zap.Duration("delay", delay),
		zap.Int("attempt", c.attempts),
	)
	c.attempts++
	gen := c.generation
	c.retryTimer = c.afterFunc(delay, func() {
		c.mu.Lock()
		stale := gen != c.generation
		if !stale {
			c.retryTimer = nil
		}
		c.mu.Unlock()
		if stale {
			return
		}
		c.Start()
	})
}

func (c *Client) cancelRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.state = StateClosing
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateIdle
}

func (c *Client) notifyError(gen uint64, err error) {
	c.mu.Lock()
	stale := gen != c.generation
	callbacks := c.callbacks
	c.mu.Unlock()
	if stale {
		return
	}
	if callbacks.OnError != nil {
		callbacks.OnError(err)
	}
}

func (c *Client) headers() http.Header {
	headers := http.Header{}
	if c.cfg.ClientID != "" {
		headers.Set("Client-Id", c.cfg.ClientID)
	}
	if c.cfg.DeviceID != "" {
		headers.Set("Device-Id", c.cfg.DeviceID)
	}
	if c.cfg.AccessToken != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}
	return headers
}

// retryDelay returns min(1s * 2^attempt, 10s).
func retryDelay(attempt int) time.Duration {
	if attempt >= 4 {
		return maxRetryDelay
	}
	return baseRetryDelay << attempt
}
