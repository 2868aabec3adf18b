// Package control schedules polling and dispatches commands for each
// appliance: it picks the transport, fences stale long-poll continuations by
// generation, and runs the defensive recovery loops the appliance's firmware
// makes necessary (off verification, fan-speed restore, liveness restarts).
package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hearthsync/internal/catalog"
	"hearthsync/internal/logger"
	"hearthsync/internal/models"
	"hearthsync/internal/reconcile"
	"hearthsync/internal/repository"
	"hearthsync/internal/snapshot"
	"hearthsync/internal/transport"
	"hearthsync/internal/transport/cloud"
)

// ErrStaleGeneration marks a continuation superseded by a mode switch. It is
// discarded silently, never user-visible.
var ErrStaleGeneration = errors.New("stale poll generation")

// ErrOffNotConfirmed is reported after the off-command retry loop exhausts its
// attempts with the appliance still observed on.
var ErrOffNotConfirmed = errors.New("appliance still on after off retries")

// LocalTransport is the local-network path to one appliance.
type LocalTransport interface {
	FetchChallenge(ctx context.Context) (string, error)
	SendCommand(ctx context.Context, wireName string, value int, challenge string) error
	Poll(ctx context.Context) (snapshot.Snapshot, error)
	SetHost(host string)
}

// CloudTransport is the relay path, shared across appliances.
type CloudTransport interface {
	Poll(ctx context.Context, serial string) (snapshot.Snapshot, error)
	LongPoll(ctx context.Context, serial, previousEtag string) (cloud.LongPollResult, error)
	SendCommand(ctx context.Context, serial, apiKey, wireName string, value int) error
}

// Config selects transports and tunes the recovery loops. Cloud polling and
// cloud command issuance are independent choices.
type Config struct {
	CloudCommands   bool
	CloudPolling    bool
	LocalFallback   bool // retry a timed-out cloud command over the local path
	RestoreFanSpeed bool

	LocalIntervalOn  time.Duration // local poll spacing while on
	LocalIntervalOff time.Duration // local poll spacing while off
	LongPollSpacing  time.Duration // floor between long-poll issues
	LivenessEvery    time.Duration
	LivenessStale    time.Duration // restart threshold since last long-poll response
	VerifyDelay      time.Duration // post-command verification poll delay
	OffRetryInterval time.Duration
	OffRetryMax      int
	FanRestoreDelay  time.Duration
}

// withDefaults fills zero tunables. The local intervals deliberately back off
// while the fire is off: the appliance misbehaves when hammered.
func (c Config) withDefaults() Config {
	if c.LocalIntervalOn == 0 {
		c.LocalIntervalOn = 5 * time.Minute
	}
	if c.LocalIntervalOff == 0 {
		c.LocalIntervalOff = 15 * time.Minute
	}
	if c.LongPollSpacing == 0 {
		c.LongPollSpacing = 60 * time.Second
	}
	if c.LivenessEvery == 0 {
		c.LivenessEvery = time.Minute
	}
	if c.LivenessStale == 0 {
		c.LivenessStale = 2 * time.Minute
	}
	if c.VerifyDelay == 0 {
		c.VerifyDelay = 3 * time.Second
	}
	if c.OffRetryInterval == 0 {
		c.OffRetryInterval = time.Minute
	}
	if c.OffRetryMax == 0 {
		c.OffRetryMax = 15
	}
	if c.FanRestoreDelay == 0 {
		c.FanRestoreDelay = 5 * time.Minute
	}
	return c
}

// Controller owns one appliance's polling and command dispatch.
type Controller struct {
	identity   models.ApplianceIdentity
	local      LocalTransport
	cloud      CloudTransport
	rec        *reconcile.Reconciler
	appliances repository.ApplianceRepo
	events     repository.EventRepo
	log        *logger.Logger

	// cmdMu keeps each challenge-fetch+submit pair atomic: the nonce is
	// single-use, so interleaved pairs would sign with a stale challenge.
	cmdMu sync.Mutex

	generation atomic.Uint64 // PollSession: fences stale continuations
	lastAlive  atomic.Int64  // unix nano of last long-poll response

	mu         sync.Mutex
	cfg        Config
	baseCtx    context.Context
	cancelLoop context.CancelFunc
	offCancel  context.CancelFunc
	kick       chan struct{}
}

func NewController(identity models.ApplianceIdentity, cfg Config, localT LocalTransport, cloudT CloudTransport, rec *reconcile.Reconciler, repos *repository.Repository, log *logger.Logger) *Controller {
	return &Controller{
		identity:   identity,
		cfg:        cfg.withDefaults(),
		local:      localT,
		cloud:      cloudT,
		rec:        rec,
		appliances: repos.Appliances,
		events:     repos.Events,
		log:        log,
		kick:       make(chan struct{}, 1),
	}
}

func (c *Controller) Serial() string { return c.identity.Serial }

// State returns the cached device state.
func (c *Controller) State() models.DeviceState { return c.rec.State() }

// Start launches the polling loops for the configured transport.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseCtx = ctx
	c.startLoopsLocked()
}

// Stop cancels all loops and supersedes any in-flight continuation.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLoopsLocked()
}

// SetCloudPolling switches the polling transport. The previous mode's
// scheduled work is cancelled and its generation superseded before the new
// mode starts.
func (c *Controller) SetCloudPolling(cloudPolling bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.CloudPolling == cloudPolling && c.cancelLoop != nil {
		return
	}
	c.cfg.CloudPolling = cloudPolling
	c.stopLoopsLocked()
	c.startLoopsLocked()
	c.log.Infow("polling_mode_switched", "serial", c.identity.Serial, "cloud", cloudPolling, "generation", c.generation.Load())
}

// HaltCloud stops cloud polling after the account session became invalid.
// Loops stay down until a human re-authenticates and polling is restarted.
func (c *Controller) HaltCloud() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.CloudPolling {
		return
	}
	c.stopLoopsLocked()
	c.log.Errorw("cloud_halted_credentials_invalid", "serial", c.identity.Serial)
	c.appendEvent(models.EventNotice, "Cloud operations halted: credentials rejected, re-run onboarding", nil)
}

func (c *Controller) startLoopsLocked() {
	if c.baseCtx == nil {
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelLoop = cancel
	gen := c.generation.Add(1)
	c.lastAlive.Store(time.Now().UnixNano())
	if c.cfg.CloudPolling {
		go c.runCloud(ctx, gen)
		go c.runLiveness(ctx, gen)
	} else {
		go c.runLocal(ctx, gen)
	}
}

func (c *Controller) stopLoopsLocked() {
	if c.cancelLoop != nil {
		c.cancelLoop()
		c.cancelLoop = nil
	}
	// Anything still in flight now carries a dead generation.
	c.generation.Add(1)
}

// stale reports whether gen has been superseded by a mode switch or restart.
func (c *Controller) stale(gen uint64) bool {
	return c.generation.Load() != gen
}

// RequestPoll nudges the active polling loop to poll now instead of waiting
// out its interval.
func (c *Controller) RequestPoll() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Command validates against the catalog and dispatches over the configured
// transport. Out-of-range values are dropped before any network call. A short
// delay after acceptance, a verification poll is requested; cached state is
// only updated by that poll, never here.
func (c *Controller) Command(ctx context.Context, name string, value int) error {
	cmd, err := catalog.Lookup(name)
	if err != nil {
		return err
	}
	if err := cmd.Validate(value); err != nil {
		c.log.Infow("command_out_of_range", "serial", c.identity.Serial, "command", name, "value", value)
		return err
	}

	if err := c.send(ctx, cmd, value); err != nil {
		return err
	}

	c.appendEvent(models.EventCommand, "Command "+name+" accepted", map[string]any{"command": name, "value": value})

	gen := c.generation.Load()
	time.AfterFunc(c.config().VerifyDelay, func() {
		if c.stale(gen) {
			return
		}
		c.RequestPoll()
	})
	return nil
}

// send dispatches one validated command, applying the optional cloud→local
// fallback for network-shaped failures.
func (c *Controller) send(ctx context.Context, cmd catalog.Command, value int) error {
	cfg := c.config()
	if !cfg.CloudCommands {
		return c.sendLocal(ctx, cmd, value)
	}

	err := c.cloud.SendCommand(ctx, c.identity.Serial, c.identity.APIKey, cmd.CloudName, value)
	if err == nil {
		return nil
	}
	if cfg.LocalFallback && transport.IsTimeout(err) {
		c.log.Errorw("cloud_command_failed_falling_back", "serial", c.identity.Serial, "command", cmd.Name, "err", err)
		c.appendEvent(models.EventFailover, "Cloud command timed out, retried over local transport", map[string]any{"command": cmd.Name})
		return c.sendLocal(ctx, cmd, value)
	}
	return err
}

// sendLocal runs one challenge-fetch + submit pair under the per-appliance
// command lock. Challenges are single-use, so the pair must not interleave
// with another command to the same appliance.
func (c *Controller) sendLocal(ctx context.Context, cmd catalog.Command, value int) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	challenge, err := c.local.FetchChallenge(ctx)
	if err != nil {
		return err
	}
	return c.local.SendCommand(ctx, cmd.LocalName, value, challenge)
}

// On lights the fireplace. When fan-speed restore is enabled, a check runs
// after the restore delay: the appliance forgets the fan speed across some
// internal resets, so a zero reading is replaced with the last non-zero one.
func (c *Controller) On(ctx context.Context) error {
	c.cancelOffVerify()
	if err := c.Command(ctx, catalog.Power, 1); err != nil {
		return err
	}
	cfg := c.config()
	if !cfg.RestoreFanSpeed {
		return nil
	}
	gen := c.generation.Load()
	time.AfterFunc(cfg.FanRestoreDelay, func() {
		if c.stale(gen) {
			return
		}
		c.restoreFanSpeed()
	})
	return nil
}

func (c *Controller) restoreFanSpeed() {
	ctx := c.base()
	if ctx == nil {
		return
	}
	if _, err := c.pollOnce(ctx); err != nil {
		c.log.Errorw("fan_restore_poll_failed", "serial", c.identity.Serial, "err", err)
		return
	}
	mem := c.rec.Memory()
	if c.rec.State().FanSpeed != 0 || mem.FanSpeed == 0 {
		return
	}
	c.log.Infow("restoring_fan_speed", "serial", c.identity.Serial, "speed", mem.FanSpeed)
	if err := c.Command(ctx, catalog.FanSpeed, mem.FanSpeed); err != nil {
		c.log.Errorw("fan_restore_failed", "serial", c.identity.Serial, "err", err)
	}
}

// Off extinguishes the fireplace. Under cloud command mode the relay is known
// to silently drop commands, so the result is verified by polling and the off
// command re-sent, bounded at OffRetryMax attempts one interval apart.
func (c *Controller) Off(ctx context.Context) error {
	c.cancelOffVerify()
	if err := c.Command(ctx, catalog.Power, 0); err != nil {
		return err
	}
	cfg := c.config()
	if !cfg.CloudCommands {
		return nil
	}

	base := c.base()
	if base == nil {
		return nil
	}
	verifyCtx, cancel := context.WithCancel(base)
	c.mu.Lock()
	c.offCancel = cancel
	c.mu.Unlock()
	go c.verifyOff(verifyCtx, cfg)
	return nil
}

func (c *Controller) verifyOff(ctx context.Context, cfg Config) {
	cmd, _ := catalog.Lookup(catalog.Power)
	retries := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.OffRetryInterval):
		}

		if _, err := c.pollOnce(ctx); err != nil {
			c.log.Errorw("off_verify_poll_failed", "serial", c.identity.Serial, "err", err)
		} else if !c.rec.State().On {
			c.log.Infow("off_confirmed", "serial", c.identity.Serial, "retries", retries)
			return
		}

		if retries >= cfg.OffRetryMax {
			c.log.Errorw("off_not_confirmed", "serial", c.identity.Serial, "retries", retries)
			c.appendEvent(models.EventNotice, "Appliance still on after off retries were exhausted", map[string]any{"retries": retries})
			return
		}
		retries++
		c.log.Infow("off_retry", "serial", c.identity.Serial, "attempt", retries)
		if err := c.send(ctx, cmd, 0); err != nil {
			c.log.Errorw("off_retry_failed", "serial", c.identity.Serial, "attempt", retries, "err", err)
		}
	}
}

func (c *Controller) cancelOffVerify() {
	c.mu.Lock()
	if c.offCancel != nil {
		c.offCancel()
		c.offCancel = nil
	}
	c.mu.Unlock()
}

// pollOnce fetches and reconciles one snapshot over the polling transport.
func (c *Controller) pollOnce(ctx context.Context) (reconcile.Update, error) {
	var (
		snap snapshot.Snapshot
		err  error
	)
	if c.config().CloudPolling {
		snap, err = c.cloud.Poll(ctx, c.identity.Serial)
	} else {
		snap, err = c.local.Poll(ctx)
	}
	if err != nil {
		return reconcile.Update{}, err
	}
	u := c.rec.Consume(ctx, snap)
	c.afterUpdate(ctx, u)
	return u, nil
}

// afterUpdate applies snapshot side effects that belong to the controller,
// not the reconciler: persisting a reported IP change and repointing the
// local transport at it.
func (c *Controller) afterUpdate(ctx context.Context, u reconcile.Update) {
	if u.NewIP == "" {
		return
	}
	c.log.Infow("appliance_ip_changed", "serial", c.identity.Serial, "ip", u.NewIP)
	c.local.SetHost(u.NewIP)
	if err := c.appliances.UpdateIP(ctx, c.identity.Serial, u.NewIP); err != nil {
		c.log.Errorw("appliance_ip_persist_failed", "serial", c.identity.Serial, "err", err)
	}
}

func (c *Controller) config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *Controller) base() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCtx
}

func (c *Controller) appendEvent(typ, description string, meta map[string]any) {
	ctx := c.base()
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.events.Append(ctx, models.FireplaceEvent{
		Serial:      c.identity.Serial,
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		c.log.Errorw("event_append_failed", "serial", c.identity.Serial, "err", err)
	}
}
