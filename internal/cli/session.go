package cli

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/soyeahso/dmschat/internal/api"
	"github.com/soyeahso/dmschat/internal/config"
	"github.com/soyeahso/dmschat/internal/hooks"
	"github.com/soyeahso/dmschat/internal/identity"
	"github.com/soyeahso/dmschat/internal/logging"
	"github.com/soyeahso/dmschat/internal/store"
)

// session is everything a command needs to talk to the backend as this
// install's client.
type session struct {
	cfg     config.Config
	log     *logging.Logger
	db      *store.DB // nil when durable storage could not be opened
	ids     *identity.Store
	cookies *identity.CookieFile
	jar     http.CookieJar
	client  *api.Client
	hooks   *hooks.Manager

	closers []io.Closer
}

// openSession loads config and wires storage, identity and the API client.
// quiet keeps log output off the terminal unless a log file is configured.
func openSession(quiet bool) (*session, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if serverURL != "" {
		cfg.Server.BaseURL = serverURL
	}

	log, logCloser, err := logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
		Style: cfg.Logging.ConsoleStyle,
		Quiet: quiet,
	})
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	if err := paths.EnsureDirs(); err != nil {
		log.Warn().Err(err).Msg("creating data directories")
	}

	// Without durable storage the id lives in the cookie file or in memory.
	var durable identity.Backend
	if db, err := store.Open(paths.State, log); err != nil {
		log.Warn().Err(err).Str("path", paths.State).Msg("durable storage unavailable")
	} else {
		s.db = db
		s.closers = append([]io.Closer{db}, s.closers...)
		durable = identity.NewDurable(store.NewKV(db), cfg.Identity.StorageKey)
	}

	s.cookies = identity.NewCookieFile(paths.Cookies, cfg.Identity.CookieName, cfg.Identity.CookieMaxAge(), nil)
	s.ids = identity.New(durable, s.cookies, log)

	s.jar, err = cookiejar.New(nil)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	s.client, err = api.New(api.Options{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.Timeout(),
		Jar:     s.jar,
	}, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.hooks = hooks.NewManager(log)
	if n := s.hooks.RegisterConfig(cfg.Hooks); n > 0 {
		log.Debug().Int("count", n).Msg("config hooks registered")
	}
	return s, nil
}

// kv returns the durable key/value store, or nil without one.
func (s *session) kv() *store.KV {
	if s.db == nil {
		return nil
	}
	return store.NewKV(s.db)
}

// ID returns the client id and makes sure requests carry its cookie.
func (s *session) ID() string {
	id := s.ids.ID()
	s.cookies.Attach(s.jar, s.client.BaseURL(), id)
	return id
}

// Rotate replaces the client id, keeping the cookie jar in step.
func (s *session) Rotate() string {
	id := s.ids.Rotate()
	s.cookies.Attach(s.jar, s.client.BaseURL(), id)
	return id
}

// Close waits for in-flight hooks and releases storage and log files.
func (s *session) Close() {
	if s.hooks != nil {
		s.hooks.Wait()
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Debug().Err(err).Msg("closing session resource")
		}
	}
}
