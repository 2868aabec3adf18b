package control

import (
	"context"
	"errors"
	"sync"

	"hearthsync/internal/logger"
	"hearthsync/internal/models"
	"hearthsync/internal/reconcile"
	"hearthsync/internal/repository"
	"hearthsync/internal/transport/local"
)

var ErrUnknownAppliance = errors.New("unknown appliance serial")

// Manager builds and tracks one Controller per registered appliance. The
// cloud transport is shared; each appliance gets its own local transport
// bound to its LAN address and api key.
type Manager struct {
	cfg    Config
	repos  *repository.Repository
	cloud  CloudTransport
	userID string
	log    *logger.Logger

	mu          sync.Mutex
	baseCtx     context.Context
	controllers map[string]*Controller
	listeners   []reconcile.Listener
}

func NewManager(cfg Config, repos *repository.Repository, cloudT CloudTransport, userID string, log *logger.Logger) *Manager {
	return &Manager{
		cfg:         cfg.withDefaults(),
		repos:       repos,
		cloud:       cloudT,
		userID:      userID,
		log:         log,
		controllers: make(map[string]*Controller),
	}
}

// Subscribe registers a listener on every current and future reconciler.
func (m *Manager) Subscribe(l reconcile.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
	for _, c := range m.controllers {
		c.rec.Subscribe(l)
	}
}

// Start loads the registered appliances and launches a controller for each.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	identities, err := m.repos.Appliances.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range identities {
		if _, err := m.Add(ctx, id); err != nil {
			m.log.Errorw("controller_start_failed", "serial", id.Serial, "err", err)
		}
	}
	return nil
}

// Add registers an appliance, restores its persisted state and starts its
// controller. Re-adding an existing serial returns the running controller.
func (m *Manager) Add(ctx context.Context, identity models.ApplianceIdentity) (*Controller, error) {
	m.mu.Lock()
	if c, ok := m.controllers[identity.Serial]; ok {
		m.mu.Unlock()
		return c, nil
	}
	base := m.baseCtx
	listeners := make([]reconcile.Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	rec := reconcile.New(identity.Serial, m.repos, m.log)
	if err := rec.Restore(ctx); err != nil {
		return nil, err
	}
	for _, l := range listeners {
		rec.Subscribe(l)
	}

	localT := local.NewClient(identity.IPAddress, identity.APIKey, m.userID)
	c := NewController(identity, m.cfg, localT, m.cloud, rec, m.repos, m.log)
	if base != nil {
		c.Start(base)
	}

	m.mu.Lock()
	m.controllers[identity.Serial] = c
	m.mu.Unlock()
	m.log.Infow("controller_started", "serial", identity.Serial, "name", identity.Name)
	return c, nil
}

func (m *Manager) Get(serial string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[serial]
	if !ok {
		return nil, ErrUnknownAppliance
	}
	return c, nil
}

// Serials lists the serials with a running controller.
func (m *Manager) Serials() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.controllers))
	for s := range m.controllers {
		out = append(out, s)
	}
	return out
}

// HaltCloud is hooked to session invalidation: every controller stops cloud
// polling until someone re-authenticates.
func (m *Manager) HaltCloud() {
	m.mu.Lock()
	cs := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		cs = append(cs, c)
	}
	m.mu.Unlock()
	for _, c := range cs {
		c.HaltCloud()
	}
}

// ResumeCloud restarts polling after a successful re-login. A deployment
// configured for local polling is left alone.
func (m *Manager) ResumeCloud() {
	if !m.cfg.CloudPolling {
		return
	}
	m.mu.Lock()
	cs := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		cs = append(cs, c)
	}
	m.mu.Unlock()
	for _, c := range cs {
		c.SetCloudPolling(true)
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	cs := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		cs = append(cs, c)
	}
	m.mu.Unlock()
	for _, c := range cs {
		c.Stop()
	}
}
