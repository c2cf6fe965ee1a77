// Package stream maintains the widget's single server-push connection and
// dispatches typed events from it.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/logging"
)

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("stream: client closed")

// Handler receives decoded stream events. Calls are made from the stream's
// reader goroutine, one at a time, in arrival order.
type Handler interface {
	OnTyping(domain.TypingEvent)
	OnMessage(domain.MessageEvent)
	OnSeen(domain.SeenEvent)
	OnAgentStatus(domain.AgentStatusEvent)
	OnDeleted(domain.DeletedEvent)
}

// ConnectionObserver is optionally implemented by a Handler to learn about
// connection state changes.
type ConnectionObserver interface {
	OnConnected()
	OnDisconnected(err error)
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// URL maps a client id to its stream address.
	URL           func(cid string) string
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	Clock         clock.Clock
}

// Client owns at most one live push connection. Opening a new connection
// first tears down the previous one and waits for it to finish.
type Client struct {
	opts Options
	log  *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	active    atomic.Int32
	connected atomic.Bool
}

// New creates a stream client.
func New(opts Options, log *logging.Logger) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectBase {
		opts.ReconnectMax = 30 * opts.ReconnectBase
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Client{opts: opts, log: log.Sub("stream")}
}

// Open connects the stream for cid and dispatches its events to h until the
// next Open, Close, or ctx cancellation. Any previous connection is closed
// before the new one is created. Open must not be called from inside a
// Handler method.
func (c *Client) Open(ctx context.Context, cid string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.run(runCtx, cid, h)
	}()
	return nil
}

// Close tears down the connection and waits for the reader to exit. The
// client cannot be reopened.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopLocked()
}

func (c *Client) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
}

// Active returns the number of open HTTP connections. It never exceeds one.
func (c *Client) Active() int { return int(c.active.Load()) }

// Connected reports whether the stream is currently receiving.
func (c *Client) Connected() bool { return c.connected.Load() }

func (c *Client) run(ctx context.Context, cid string, h Handler) {
	b := c.newBackOff()
	for {
		retry, err := c.connect(ctx, cid, h, b.Reset)
		if ctx.Err() != nil {
			return
		}

		// a server-announced retry replaces the computed delay
		delay := b.NextBackOff()
		if retry > 0 {
			delay = retry
		}
		c.log.Debug().Err(err).Str("cid", cid).Dur("delay", delay).Msg("stream lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-c.opts.Clock.After(delay):
		}
	}
}

// connect holds one HTTP connection until it ends, calling connected once
// the server accepts it. It returns the server's announced retry delay, if
// any.
func (c *Client) connect(ctx context.Context, cid string, h Handler, connected func()) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL(cid), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("stream connect: %w", err)
	}
	c.active.Add(1)
	defer func() {
		resp.Body.Close()
		c.active.Add(-1)
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stream HTTP %d", resp.StatusCode)
	}

	connected()
	c.connected.Store(true)
	c.log.Info().Str("cid", cid).Msg("stream connected")
	if obs, ok := h.(ConnectionObserver); ok {
		obs.OnConnected()
	}

	dec := NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if err != nil {
			c.connected.Store(false)
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			if obs, ok := h.(ConnectionObserver); ok {
				obs.OnDisconnected(err)
			}
			return dec.Retry(), err
		}
		c.dispatch(ev, h)
	}
}

func (c *Client) dispatch(ev Event, h Handler) {
	var err error
	switch ev.Name {
	case domain.EventTyping:
		var p domain.TypingEvent
		if err = json.Unmarshal([]byte(ev.Data), &p); err == nil {
			h.OnTyping(p)
		}
	case domain.EventMessage:
		var p domain.MessageEvent
		if err = json.Unmarshal([]byte(ev.Data), &p); err == nil {
			h.OnMessage(p)
		}
	case domain.EventSeen:
		var p domain.SeenEvent
		if err = json.Unmarshal([]byte(ev.Data), &p); err == nil {
			h.OnSeen(p)
		}
	case domain.EventAgentStatus:
		var p domain.AgentStatusEvent
		if err = json.Unmarshal([]byte(ev.Data), &p); err == nil {
			h.OnAgentStatus(p)
		}
	case domain.EventDeleted:
		var p domain.DeletedEvent
		if err = json.Unmarshal([]byte(ev.Data), &p); err == nil {
			h.OnDeleted(p)
		}
	default:
		c.log.Debug().Str("event", ev.Name).Msg("ignoring unknown event")
		return
	}
	if err != nil {
		c.log.Debug().Err(err).Str("event", ev.Name).Msg("dropping malformed event")
	}
}

// newBackOff doubles from ReconnectBase up to ReconnectMax and never gives
// up. Jitter is off so reconnect timing follows the configured steps.
func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectBase
	b.MaxInterval = c.opts.ReconnectMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = c.opts.Clock
	b.Reset()
	return b
}
