package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/soyeahso/dmschat/internal/store"
)

// KVStore is the part of store.KV the durable backend needs.
type KVStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Durable keeps the id in the local key/value store.
type Durable struct {
	kv  KVStore
	key string
}

// NewDurable returns a backend storing the id under key. A nil kv yields a
// backend whose every call fails with ErrUnavailable.
func NewDurable(kv KVStore, key string) *Durable {
	return &Durable{kv: kv, key: key}
}

func (d *Durable) Load() (string, error) {
	if d.kv == nil {
		return "", ErrUnavailable
	}
	v, err := d.kv.Get(d.key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (d *Durable) Save(value string) error {
	if d.kv == nil {
		return ErrUnavailable
	}
	return d.kv.Set(d.key, value)
}

// storedCookie is the on-disk form of the identity cookie.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"`
}

// CookieFile keeps the id as a long-lived cookie persisted to a JSON file,
// and attaches it to outgoing requests through a cookie jar.
type CookieFile struct {
	path   string
	name   string
	maxAge time.Duration
	clock  clock.Clock
}

// NewCookieFile returns a cookie backend writing to path.
func NewCookieFile(path, name string, maxAge time.Duration, clk clock.Clock) *CookieFile {
	if clk == nil {
		clk = clock.New()
	}
	return &CookieFile{path: path, name: name, maxAge: maxAge, clock: clk}
}

func (c *CookieFile) Load() (string, error) {
	if c.path == "" {
		return "", ErrUnavailable
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var sc storedCookie
	if err := json.Unmarshal(data, &sc); err != nil {
		return "", fmt.Errorf("decoding cookie file: %w", err)
	}
	if sc.Name != c.name || !c.clock.Now().Before(sc.Expires) {
		return "", nil
	}
	return sc.Value, nil
}

func (c *CookieFile) Save(value string) error {
	if c.path == "" {
		return ErrUnavailable
	}
	sc := storedCookie{
		Name:    c.name,
		Value:   value,
		Path:    "/",
		Expires: c.clock.Now().Add(c.maxAge).UTC(),
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Cookie builds the HTTP cookie carrying value.
func (c *CookieFile) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.maxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
}

// Attach installs the id cookie into jar for base.
func (c *CookieFile) Attach(jar http.CookieJar, base *url.URL, value string) {
	jar.SetCookies(base, []*http.Cookie{c.Cookie(value)})
}
