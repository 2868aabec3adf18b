// Package session owns the account-wide cloud relay session: login, cookie
// capture, the generation counter, and credential-invalidation recovery.
// Login is serialized account-wide so concurrent attempts cannot interleave
// cookie capture.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"hearthsync/internal/logger"
	"hearthsync/internal/repository"
	"hearthsync/internal/transport"
)

const loginTimeout = 10 * time.Second

// Manager holds SessionCredentials for one account. All appliances under the
// account share it.
type Manager struct {
	mu       sync.Mutex
	loginURL string
	http     *http.Client
	store    repository.SessionRepo
	log      *logger.Logger

	save     bool // keep credentials across restarts
	email    string
	password string

	cookies    map[string]string
	generation uint64

	onInvalid []func()
}

func NewManager(loginURL string, store repository.SessionRepo, saveCredentials bool, log *logger.Logger) *Manager {
	return &Manager{
		loginURL: loginURL,
		http:     &http.Client{Timeout: loginTimeout},
		store:    store,
		save:     saveCredentials,
		log:      log,
		cookies:  map[string]string{},
	}
}

// Restore loads the persisted session and credentials, if any.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cookies, generation, err := m.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	if cookies != nil {
		m.cookies = cookies
	}
	m.generation = generation

	email, password, err := m.store.LoadCredentials(ctx)
	if err != nil {
		return err
	}
	m.email, m.password = email, password
	return nil
}

// OnInvalidate registers a hook run when stored credentials are rejected and
// cloud operations must halt until a human re-authenticates.
func (m *Manager) OnInvalidate(fn func()) {
	m.mu.Lock()
	m.onInvalid = append(m.onInvalid, fn)
	m.mu.Unlock()
}

// Login authenticates against the relay and replaces the stored session
// cookies on success, incrementing the generation counter.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginLocked(ctx, email, password)
}

func (m *Manager) loginLocked(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"username": email, "password": password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.loginURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return &transport.Error{Op: "cloud login", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("cloud login: %w", transport.ErrInvalidCredentials)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &transport.Error{Op: "cloud login", StatusCode: resp.StatusCode}
	}

	m.cookies = parseSetCookie(resp.Header.Values("Set-Cookie"))
	m.generation++
	m.email, m.password = email, password

	if err := m.store.SaveSession(ctx, m.cookies, m.generation); err != nil {
		m.log.Errorw("session_persist_failed", "err", err)
	}
	if m.save {
		if err := m.store.SaveCredentials(ctx, email, password); err != nil {
			m.log.Errorw("credentials_persist_failed", "err", err)
		}
	}
	m.log.Infow("cloud_login_ok", "generation", m.generation, "cookies", len(m.cookies))
	return nil
}

// Refresh re-attempts login with stored credentials after a 403. If those are
// also rejected, credentials are purged (unless persistence is enabled) and
// every registered invalidation hook fires.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	email, password := m.email, m.password
	m.mu.Unlock()

	if email == "" || password == "" {
		m.invalidate(ctx)
		return fmt.Errorf("no stored credentials: %w", transport.ErrInvalidCredentials)
	}

	m.mu.Lock()
	err := m.loginLocked(ctx, email, password)
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, transport.ErrInvalidCredentials) {
			m.invalidate(ctx)
		}
		return err
	}
	return nil
}

func (m *Manager) invalidate(ctx context.Context) {
	m.mu.Lock()
	if !m.save {
		m.email, m.password = "", ""
		if err := m.store.ClearCredentials(ctx); err != nil {
			m.log.Errorw("credentials_clear_failed", "err", err)
		}
	}
	hooks := append([]func(){}, m.onInvalid...)
	m.mu.Unlock()

	m.log.Errorw("cloud_credentials_invalid", "action", "re-run credential onboarding")
	for _, fn := range hooks {
		fn()
	}
}

// Logout drops the session cookies. Credentials are kept according to the
// persistence setting.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = map[string]string{}
	if err := m.store.SaveSession(ctx, m.cookies, m.generation); err != nil {
		m.log.Errorw("session_persist_failed", "err", err)
	}
}

// Generation returns the monotonically increasing login counter.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// LoggedIn reports whether any session cookies are held.
func (m *Manager) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cookies) > 0
}

// Apply attaches the session cookies to an outgoing relay request.
func (m *Manager) Apply(req *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.cookies))
	for name := range m.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.AddCookie(&http.Cookie{Name: name, Value: m.cookies[name]})
	}
}

// parseSetCookie keeps only the name=value pair of each Set-Cookie header,
// discarding attributes. Empty values are dropped.
func parseSetCookie(headers []string) map[string]string {
	cookies := map[string]string{}
	for _, h := range headers {
		pair, _, _ := strings.Cut(h, ";")
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		cookies[name] = value
	}
	return cookies
}
