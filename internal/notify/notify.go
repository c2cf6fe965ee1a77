// Package notify produces the attention side effects of an inbound reply: a
// sound, a system notification and a vibration. Each effect is best effort
// and independent of the others.
package notify

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/soyeahso/dmschat/internal/hooks"
	"github.com/soyeahso/dmschat/internal/logging"
	"github.com/soyeahso/dmschat/internal/store"
)

// Permission is the user's decision about system notifications.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a config or stored value to a Permission. Anything
// unrecognized is treated as undecided.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

// PermissionKey is the durable storage key holding the decision.
const PermissionKey = "notify_permission"

const (
	DefaultTitle   = "New message"
	DefaultMaxBody = 80
)

// KVStore persists the permission decision.
type KVStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Options configures a Notifier.
type Options struct {
	// Bell receives the audible alert. Nil disables sound.
	Bell io.Writer
	// Hooks delivers the system notification through the notification event.
	Hooks *hooks.Manager
	// Vibrate is called for the haptic cue when set.
	Vibrate func() error
	// MaxBody caps the notification body in characters.
	MaxBody int
	// Permission is the configured decision. PermissionDefault defers to the
	// stored one and to Prompt.
	Permission Permission
	Store      KVStore
	// Prompt asks for a decision. The default grants when a notification
	// hook is configured.
	Prompt func(ctx context.Context) Permission
}

// Notifier fires notification side effects.
type Notifier struct {
	opts Options
	log  *logging.Logger

	mu   sync.Mutex
	perm Permission
}

// New creates a Notifier.
func New(opts Options, log *logging.Logger) *Notifier {
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	n := &Notifier{opts: opts, log: log.Sub("notify")}
	if n.opts.Prompt == nil {
		n.opts.Prompt = n.hookPrompt
	}
	n.perm = n.initialPermission()
	return n
}

func (n *Notifier) initialPermission() Permission {
	if p := ParsePermission(string(n.opts.Permission)); p != PermissionDefault {
		return p
	}
	if n.opts.Store == nil {
		return PermissionDefault
	}
	v, err := n.opts.Store.Get(PermissionKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			n.log.Debug().Err(err).Msg("reading notification permission")
		}
		return PermissionDefault
	}
	return ParsePermission(v)
}

func (n *Notifier) hookPrompt(context.Context) Permission {
	if n.opts.Hooks != nil && n.opts.Hooks.Count(hooks.EventNotification) > 0 {
		return PermissionGranted
	}
	return PermissionDenied
}

// Permission returns the current decision.
func (n *Notifier) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

// RequestPermission prompts only while the decision is still undecided and
// persists whatever the prompt returns.
func (n *Notifier) RequestPermission(ctx context.Context) Permission {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.perm != PermissionDefault {
		return n.perm
	}
	decision := n.opts.Prompt(ctx)
	if decision == PermissionDefault {
		return n.perm
	}
	n.perm = decision
	n.log.Info().Str("permission", string(decision)).Msg("notification permission decided")
	if n.opts.Store != nil {
		if err := n.opts.Store.Set(PermissionKey, string(decision)); err != nil {
			n.log.Warn().Err(err).Msg("saving notification permission")
		}
	}
	return n.perm
}

// Notify rings the bell, raises a notification when permitted and vibrates.
// A failure in one effect never prevents the others.
func (n *Notifier) Notify(ctx context.Context, title, body string) {
	if title == "" {
		title = DefaultTitle
	}

	if n.opts.Bell != nil {
		if _, err := io.WriteString(n.opts.Bell, "\a"); err != nil {
			n.log.Debug().Err(err).Msg("bell failed")
		}
	}

	if n.Permission() == PermissionGranted && n.opts.Hooks != nil {
		n.opts.Hooks.EmitAsync(ctx, hooks.EventNotification, map[string]any{
			"title": title,
			"body":  Truncate(body, n.opts.MaxBody),
		})
	}

	if n.opts.Vibrate != nil {
		if err := n.opts.Vibrate(); err != nil {
			n.log.Debug().Err(err).Msg("vibrate failed")
		}
	}
}

// Truncate cuts s to at most max characters.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
