package bitget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tradecollector/internal/bitget/memorystore"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrReconnectsExhausted is reported by Err once the client gives up reconnecting.
var ErrReconnectsExhausted = errors.New("bitget: maximum reconnection attempts reached")

// State is the connection lifecycle state of a WSClient.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// WSOptions tunes connection behaviour. Zero values fall back to defaults.
type WSOptions struct {
	InstType          InstType
	PingInterval      time.Duration // keep-alive ping period (30s)
	PongWait          time.Duration // extra time allowed for the pong after a ping (10s)
	WriteTimeout      time.Duration // deadline for each outbound frame (10s)
	HandshakeTimeout  time.Duration // dial + upgrade deadline (10s)
	SubscribeInterval time.Duration // spacing between subscribe frames (200ms)
	MaxReconnects     int           // consecutive reconnects before giving up (100)
}

func (o WSOptions) withDefaults() WSOptions {
	if o.InstType == "" {
		o.InstType = InstTypeSpot
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.SubscribeInterval <= 0 {
		o.SubscribeInterval = 200 * time.Millisecond
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 100
	}
	return o
}

// WSClient owns the feed connection: it connects, subscribes every tracked
// symbol, streams frames to the message handler, keeps the link alive and
// reconnects with exponential backoff until stopped or out of attempts.
type WSClient struct {
	url         string
	opts        WSOptions
	symbolStore *memorystore.MemorySymbolStore
	scheduler   SubscribeScheduler
	dialer      *websocket.Dialer
	backoff     func(attempt int) time.Duration
	handler     func([]byte)
	onState     func(State)
	logger      *zap.Logger

	mu      sync.Mutex
	state   State
	attempt int
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewWSClient creates a client for url that subscribes to the symbols held in store.
func NewWSClient(url string, opts WSOptions, store *memorystore.MemorySymbolStore, logger *zap.Logger) *WSClient {
	opts = opts.withDefaults()
	return &WSClient{
		url:         url,
		opts:        opts,
		symbolStore: store,
		scheduler: SubscribeScheduler{
			InstType: opts.InstType,
			Channel:  ChannelTrade,
			Interval: opts.SubscribeInterval,
		},
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		backoff: Backoff,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// SetMessageHandler sets the function that receives data frames.
// Control frames (acks, errors, pongs) are consumed by the client.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// SetStateListener registers a callback invoked on every state change.
func (c *WSClient) SetStateListener(f func(State)) {
	c.onState = f
}

// Start begins connecting in the background. It returns an error only when
// the client was already started.
func (c *WSClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("bitget: client already started")
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Stop cancels any pending reconnect, closes the live connection and waits
// until no more frames will be delivered to the handler.
func (c *WSClient) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-c.done
}

// Done is closed once the client stopped, either via Stop or after exhausting reconnects.
func (c *WSClient) Done() <-chan struct{} {
	return c.done
}

// Err returns ErrReconnectsExhausted when the client gave up, nil otherwise.
func (c *WSClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// State returns the current connection state.
func (c *WSClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempt returns the current consecutive reconnect attempt count.
func (c *WSClient) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

func (c *WSClient) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.onState != nil {
		c.onState(s)
	}
}

// markStreaming moves Subscribing → Streaming and resets the attempt counter.
func (c *WSClient) markStreaming() {
	c.mu.Lock()
	promoted := c.state == StateSubscribing
	if promoted {
		c.state = StateStreaming
		c.attempt = 0
	}
	c.mu.Unlock()

	if promoted {
		c.logger.Info("WebSocket streaming")
		if c.onState != nil {
			c.onState(StateStreaming)
		}
	}
}

func (c *WSClient) run(ctx context.Context) {
	defer close(c.done)

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.setState(StateStopped)
			return
		}
		c.setState(StateDisconnected)
		c.logger.Warn("WebSocket connection closed", zap.Error(err))

		c.mu.Lock()
		if c.attempt >= c.opts.MaxReconnects {
			c.err = ErrReconnectsExhausted
			c.mu.Unlock()
			c.logger.Error("Maximum reconnection attempts reached, giving up",
				zap.Int("max_reconnects", c.opts.MaxReconnects))
			c.setState(StateStopped)
			return
		}
		c.attempt++
		attempt := c.attempt
		c.mu.Unlock()

		wait := c.backoff(attempt)
		c.logger.Info("Reconnecting", zap.Duration("wait", wait), zap.Int("attempt", attempt))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateStopped)
			return
		}
	}
}

// session runs one connection from dial to failure. It returns only after all
// goroutines tied to the connection have exited.
func (c *WSClient) session(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancelDial := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, c.url, nil)
	cancelDial()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.logger.Info("WebSocket connected", zap.String("url", c.url))

	w := &connWriter{conn: conn, timeout: c.opts.WriteTimeout}
	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	readWindow := c.opts.PingInterval + c.opts.PongWait
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(readWindow)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	c.setState(StateSubscribing)

	wg.Add(3)
	go func() {
		defer wg.Done()
		<-sessCtx.Done()
		_ = conn.Close() // unblocks ReadMessage
	}()
	go func() {
		defer wg.Done()
		c.keepAlive(sessCtx, w)
	}()
	go func() {
		defer wg.Done()
		symbols := c.symbolStore.GetAll()
		sent, err := c.scheduler.Run(sessCtx, symbols, func(req SubscribeRequest) error {
			return w.writeJSON(req)
		})
		if err != nil && sessCtx.Err() == nil {
			c.logger.Warn("Failed to send subscriptions", zap.Int("sent", sent), zap.Error(err))
			_ = conn.Close()
			return
		}
		c.logger.Debug("Subscriptions sent", zap.Int("sent", sent), zap.Int("total", len(symbols)))
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = extend()

		if err := c.dispatch(msg); err != nil {
			return err
		}
	}
}

// keepAlive sends a protocol ping and an application "ping" every PingInterval.
// A missing reply lets the read deadline expire, which ends the session.
func (c *WSClient) keepAlive(ctx context.Context, w *connWriter) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ping(); err != nil {
				c.logger.Warn("Keep-alive ping failed", zap.Error(err))
				_ = w.conn.Close()
				return
			}
		}
	}
}

// dispatch routes one inbound frame. A returned error ends the session.
func (c *WSClient) dispatch(msg []byte) error {
	if string(msg) == appPong {
		return nil
	}

	var ctrl ControlMessage
	if err := json.Unmarshal(msg, &ctrl); err != nil {
		c.logger.Warn("failed to decode frame", zap.Error(err), zap.Int("bytes", len(msg)))
		return nil
	}

	switch ctrl.Event {
	case "":
		if c.handler != nil {
			c.handler(msg)
		}
	case EventSubscribe:
		c.logger.Info("Subscribed", zap.String("symbol", ctrl.Arg.InstID), zap.String("channel", ctrl.Arg.Channel))
		c.markStreaming()
	case EventError:
		if ctrl.Arg.InstID != "" {
			// Rejected subscription for one symbol; the others keep streaming.
			c.logger.Error("Subscription error",
				zap.String("symbol", ctrl.Arg.InstID),
				zap.ByteString("code", ctrl.Code),
				zap.String("msg", ctrl.Msg))
			return nil
		}
		return fmt.Errorf("protocol error: code=%s msg=%s", ctrl.Code, ctrl.Msg)
	default:
		c.logger.Debug("Ignoring event", zap.String("event", ctrl.Event))
	}
	return nil
}

// connWriter serialises writes; gorilla allows only one concurrent writer.
type connWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *connWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return w.conn.WriteJSON(v)
}

func (w *connWriter) ping() error {
	if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.timeout)); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return w.conn.WriteMessage(websocket.TextMessage, []byte(appPing))
}
