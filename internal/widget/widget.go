// Package widget is the chat widget's synchronization core. A Widget
// reconciles the backend's push stream with local optimistic state (message
// delivery, typing indicators, the unread badge and panel visibility) and
// reports every visible change to a Renderer.
//
// All state lives behind one mutex. Timers fire through a scheduler that
// holds the same mutex. Network I/O never happens while the widget is
// locked: sends and typing publishes run on a serial outbox goroutine in
// submission order, and every other call (heartbeat, read receipts,
// notifications) runs on its own goroutine.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/soyeahso/dmschat/internal/config"
	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/hooks"
	"github.com/soyeahso/dmschat/internal/logging"
	"github.com/soyeahso/dmschat/internal/notify"
	"github.com/soyeahso/dmschat/internal/schedule"
	"github.com/soyeahso/dmschat/internal/stream"
)

// ErrStarted is returned by Start on a widget that already started.
var ErrStarted = errors.New("widget: already started")

// Backend is the request/response side of the chat server.
type Backend interface {
	Status(ctx context.Context) (domain.Presence, error)
	History(ctx context.Context, cid string) ([]domain.HistoryEntry, error)
	Heartbeat(ctx context.Context, cid string) error
	SendMessage(ctx context.Context, cid, text, tempID string) (string, error)
	Typing(ctx context.Context, cid, who string, state bool) error
	Seen(ctx context.Context, cid string, mids []string, who string) ([]string, error)
}

// Stream is the push connection.
type Stream interface {
	Open(ctx context.Context, cid string, h stream.Handler) error
	Close()
}

// Identity supplies the client id.
type Identity interface {
	ID() string
	Rotate() string
}

// Notifier produces attention side effects for inbound replies.
type Notifier interface {
	Notify(ctx context.Context, title, body string)
	RequestPermission(ctx context.Context) notify.Permission
}

// Options wires a Widget to its collaborators.
type Options struct {
	Backend  Backend
	Stream   Stream
	Identity Identity
	Renderer Renderer
	Notifier Notifier
	Hooks    *hooks.Manager
	Clock    clock.Clock
	Config   config.WidgetConfig
}

// timings holds the resolved durations from WidgetConfig.
type timings struct {
	heartbeat      time.Duration
	typingIdle     time.Duration
	typingFailsafe time.Duration
	revealDelay    time.Duration
	revealStep     time.Duration
	sendInterval   time.Duration
	previewTTL     time.Duration
	previewChars   int
}

func resolveTimings(c config.WidgetConfig) timings {
	d := config.Defaults().Widget
	pick := func(v, def int) int {
		if v > 0 {
			return v
		}
		return def
	}
	cps := pick(c.TypewriterCps, d.TypewriterCps)
	delay := c.TypewriterDelayMs
	if delay < 0 {
		delay = d.TypewriterDelayMs
	}
	return timings{
		heartbeat:      config.Ms(pick(c.HeartbeatIntervalMs, d.HeartbeatIntervalMs)),
		typingIdle:     config.Ms(pick(c.TypingIdleMs, d.TypingIdleMs)),
		typingFailsafe: config.Ms(pick(c.TypingFailsafeMs, d.TypingFailsafeMs)),
		revealDelay:    config.Ms(delay),
		revealStep:     time.Second / time.Duration(cps),
		sendInterval:   config.Ms(pick(c.SendDebounceMs, d.SendDebounceMs)),
		previewTTL:     config.Ms(pick(c.PreviewTTLMs, d.PreviewTTLMs)),
		previewChars:   pick(c.PreviewChars, d.PreviewChars),
	}
}

// Scheduler keys.
const (
	keyHeartbeat      = "heartbeat"
	keyTypingIdle     = "typing:idle"
	keyTypingFailsafe = "typing:remote"
	keyPreview        = "badge:preview"
	keyRevealPrefix   = "reveal:"
)

// Widget is one chat widget instance.
type Widget struct {
	backend  Backend
	stream   Stream
	identity Identity
	render   Renderer
	notifier Notifier
	hooks    *hooks.Manager
	clock    clock.Clock
	t        timings
	log      *logging.Logger

	// streamMu serializes stream reopening. It is never taken while mu is
	// held.
	streamMu sync.Mutex

	mu           sync.Mutex
	sched        *schedule.Scheduler
	out          *outbox
	calls        calls
	limiter      *rate.Limiter
	ctx          context.Context
	cancel       context.CancelFunc
	started      bool
	stopped      bool
	cid          string
	messages     *MessageLog
	badge        Badge
	typing       LocalTyping
	remoteTyping bool
	online       bool
	open         bool
	visible      bool
	newTempID    func() string
}

// New creates a widget. Nothing happens until Start.
func New(opts Options, log *logging.Logger) *Widget {
	if opts.Renderer == nil {
		opts.Renderer = NopRenderer{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	t := resolveTimings(opts.Config)
	w := &Widget{
		backend:   opts.Backend,
		stream:    opts.Stream,
		identity:  opts.Identity,
		render:    opts.Renderer,
		notifier:  opts.Notifier,
		hooks:     opts.Hooks,
		clock:     opts.Clock,
		t:         t,
		log:       log.Sub("widget"),
		out:       newOutbox(),
		limiter:   rate.NewLimiter(rate.Every(t.sendInterval), 1),
		messages:  NewMessageLog(),
		visible:   true,
		newTempID: newTempID,
	}
	w.sched = schedule.New(opts.Clock, &w.mu)
	return w
}

func newTempID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Start loads presence and history, begins the heartbeat and opens the push
// stream. Failures of the initial fetches degrade to defaults.
func (w *Widget) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrStarted
	}
	w.started = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.out.start(w.ctx)
	w.calls.start(w.ctx)
	runCtx := w.ctx
	w.mu.Unlock()

	cid := w.identity.ID()

	presence, err := w.backend.Status(runCtx)
	if err != nil {
		w.log.Debug().Err(err).Msg("status poll failed, assuming offline")
		presence = domain.Presence{}
	}
	history, err := w.backend.History(runCtx, cid)
	if err != nil {
		w.log.Warn().Err(err).Str("cid", cid).Msg("history fetch failed")
		history = nil
	}

	w.mu.Lock()
	w.cid = cid
	w.render.SetPanelOpen(w.open)
	w.render.SetBadge(0, "")
	w.setPresenceLocked(presence.Online)
	w.loadHistoryLocked(history)
	w.heartbeatLocked()
	w.scheduleHeartbeatLocked()
	w.mu.Unlock()

	return w.openStream()
}

// Stop cancels in-flight calls, closes the stream, cancels timers and waits
// for the outbound goroutines to finish. Calls still queued run against the
// cancelled context, so Stop does not wait on a slow backend. Use Flush
// first to let them complete.
func (w *Widget) Stop() {
	w.mu.Lock()
	if !w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.stream.Close()
	w.sched.Stop()
	w.out.close()
	w.calls.close()
}

// Flush waits until every outbound call issued so far has completed.
func (w *Widget) Flush(ctx context.Context) error {
	if err := w.out.flush(ctx); err != nil {
		return err
	}
	return w.calls.wait(ctx)
}

// ClientID returns the id the widget is scoped to.
func (w *Widget) ClientID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cid
}

// RotateIdentity replaces the client id, clears the local conversation and
// reconnects the stream under the new id. Before Start only the id and the
// local state change; Start connects with the new id.
func (w *Widget) RotateIdentity() (string, error) {
	cid := w.identity.Rotate()

	w.mu.Lock()
	w.cid = cid
	w.resetConversationLocked()
	w.mu.Unlock()

	w.log.Info().Str("cid", cid).Msg("identity rotated")
	return cid, w.openStream()
}

func (w *Widget) openStream() error {
	w.streamMu.Lock()
	defer w.streamMu.Unlock()

	w.mu.Lock()
	if !w.started || w.stopped {
		w.mu.Unlock()
		return nil
	}
	cid, ctx := w.cid, w.ctx
	w.mu.Unlock()

	return w.stream.Open(ctx, cid, &conn{w: w, cid: cid})
}

func (w *Widget) resetConversationLocked() {
	w.sched.CancelPrefix(keyRevealPrefix)
	w.sched.Cancel(keyTypingFailsafe)
	w.sched.Cancel(keyTypingIdle)
	w.sched.Cancel(keyPreview)
	w.messages.Reset()
	w.badge.Reset()
	w.typing.Stop()
	w.remoteTyping = false
	w.render.Clear()
	w.render.SetRemoteTyping(false)
	w.render.SetBadge(0, "")
}

func (w *Widget) setPresenceLocked(online bool) {
	w.online = online
	w.render.SetPresence(online, PresenceLabel(online))
}

// submit queues an ordered outbound call bound to the widget's context.
func (w *Widget) submit(fn job) {
	if !w.out.enqueue(fn) {
		w.log.Debug().Msg("outbox closed, dropping call")
	}
}

// dispatch runs an outbound call that nothing else waits on.
func (w *Widget) dispatch(fn job) {
	if !w.calls.do(fn) {
		w.log.Debug().Msg("widget not running, dropping call")
	}
}

func (w *Widget) emit(event string, data map[string]any) {
	if w.hooks == nil {
		return
	}
	ctx := context.Background()
	if w.ctx != nil {
		ctx = context.WithoutCancel(w.ctx)
	}
	w.hooks.EmitAsync(ctx, event, data)
}

func (w *Widget) notifyLocked(title, body string) {
	if w.notifier == nil {
		return
	}
	n := w.notifier
	w.dispatch(func(ctx context.Context) { n.Notify(ctx, title, body) })
}

// Snapshot is a copy of the widget's observable state.
type Snapshot struct {
	ClientID     string
	Messages     []Entry
	Badge        Badge
	Online       bool
	Open         bool
	RemoteTyping bool
	LocalTyping  bool
	Visible      bool
}

// Snapshot returns the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		ClientID:     w.cid,
		Messages:     w.messages.Entries(),
		Badge:        w.badge,
		Online:       w.online,
		Open:         w.open,
		RemoteTyping: w.remoteTyping,
		LocalTyping:  w.typing.Signaled(),
		Visible:      w.visible,
	}
}
