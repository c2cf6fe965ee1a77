// Package identity derives and persists the stable per-install client id.
package identity

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/soyeahso/dmschat/internal/logging"
)

// Prefix starts every client id.
const Prefix = "client-"

// ErrUnavailable is returned by a backend that cannot be used at all.
var ErrUnavailable = errors.New("identity: storage unavailable")

// Backend is one place the client id can be kept. Load returns "" when no
// value is stored.
type Backend interface {
	Load() (string, error)
	Save(value string) error
}

// Generate returns a fresh client id.
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether id looks like a client id.
func Valid(id string) bool {
	if !strings.HasPrefix(id, Prefix) || len(id) == len(Prefix) {
		return false
	}
	return !strings.ContainsAny(id, " \t\r\n;,\"")
}

// Store hands out the client id, reading it from durable storage or the cookie
// and writing it back to both. Storage failures are logged and never returned:
// without working storage the id simply lives in memory.
type Store struct {
	mu      sync.Mutex
	durable Backend
	cookie  Backend
	id      string
	log     *logging.Logger
	gen     func() string
}

// New creates a Store. Nil backends are replaced by in-memory ones.
func New(durable, cookie Backend, log *logging.Logger) *Store {
	if durable == nil {
		durable = &Memory{}
	}
	if cookie == nil {
		cookie = &Memory{}
	}
	return &Store{
		durable: durable,
		cookie:  cookie,
		log:     log.Sub("identity"),
		gen:     Generate,
	}
}

// ID returns the client id, creating and persisting one on first use.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		return s.id
	}

	fromDurable := s.load("durable", s.durable)
	fromCookie := s.load("cookie", s.cookie)

	switch {
	case fromDurable != "":
		s.id = fromDurable
	case fromCookie != "":
		s.id = fromCookie
	default:
		s.id = s.gen()
		s.log.Info().Str("cid", s.id).Msg("generated client id")
	}

	if fromDurable != s.id {
		s.save("durable", s.durable, s.id)
	}
	if fromCookie != s.id {
		s.save("cookie", s.cookie, s.id)
	}
	return s.id
}

// Rotate replaces the client id with a fresh one and persists it.
func (s *Store) Rotate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = s.gen()
	s.save("durable", s.durable, s.id)
	s.save("cookie", s.cookie, s.id)
	s.log.Info().Str("cid", s.id).Msg("rotated client id")
	return s.id
}

func (s *Store) load(name string, b Backend) string {
	v, err := b.Load()
	if err != nil {
		s.log.Debug().Err(err).Str("backend", name).Msg("identity read failed")
		return ""
	}
	if v != "" && !Valid(v) {
		s.log.Debug().Str("backend", name).Str("value", v).Msg("ignoring malformed client id")
		return ""
	}
	return v
}

func (s *Store) save(name string, b Backend, id string) {
	if err := b.Save(id); err != nil {
		s.log.Warn().Err(err).Str("backend", name).Msg("identity write failed")
	}
}

// Memory is a Backend that lives only as long as the process.
type Memory struct {
	mu    sync.Mutex
	value string
}

func (m *Memory) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *Memory) Save(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	return nil
}
