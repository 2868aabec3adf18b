// Package reconcile folds raw snapshots from either transport into the cached
// device state. It is the only writer of that state: commands merely request a
// change and the next snapshot confirms it here.
package reconcile

import (
	"context"
	"sync"
	"time"

	"hearthsync/internal/catalog"
	"hearthsync/internal/logger"
	"hearthsync/internal/models"
	"hearthsync/internal/repository"
	"hearthsync/internal/snapshot"
)

// Update is what a consumed snapshot produced: the new cached state, the
// fault-set delta, and whether the derived on/off state flipped.
type Update struct {
	Serial    string
	State     models.DeviceState
	OnChanged bool
	Raised    []string // symbolic names of newly raised faults
	Cleared   []string // symbolic names of faults no longer reported
	NewIP     string   // non-empty when the appliance reports a different address
}

// Listener receives reconciled updates; sub-devices (a light-only or fan-only
// abstraction, the websocket hub) register here.
type Listener interface {
	ReceiveUpdate(Update)
}

type Reconciler struct {
	mu       sync.Mutex
	serial   string
	states   repository.StateRepo
	retained repository.RetainedRepo
	events   repository.EventRepo
	log      *logger.Logger

	state     models.DeviceState
	memory    models.RetainedValues
	prevCodes map[int]struct{}
	listeners []Listener
}

// New builds a reconciler for one appliance.
func New(serial string, repos *repository.Repository, log *logger.Logger) *Reconciler {
	return &Reconciler{
		serial:    serial,
		states:    repos.States,
		retained:  repos.Retained,
		events:    repos.Events,
		log:       log,
		state:     models.DeviceState{Serial: serial},
		prevCodes: map[int]struct{}{},
	}
}

// Restore loads the persisted cache so state survives restarts.
func (r *Reconciler) Restore(ctx context.Context) error {
	st, err := r.states.Load(ctx, r.serial)
	if err != nil {
		return err
	}
	mem, err := r.retained.Load(ctx, r.serial)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.state = st
	r.memory = mem
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// State returns the current cached device state.
func (r *Reconciler) State() models.DeviceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Memory returns the last non-zero fan/light/setpoint values.
func (r *Reconciler) Memory() models.RetainedValues {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memory
}

// Consume folds one raw snapshot into the cache and notifies listeners.
// Fields absent from the snapshot keep their previous values.
func (r *Reconciler) Consume(ctx context.Context, snap snapshot.Snapshot) Update {
	r.mu.Lock()
	st := r.state
	st.Serial = r.serial
	prevOn := st.On

	// Both raw flags must be read before deriving: the thermostat can hold
	// the flame alive while power reads 0.
	if v, ok := snap.Bool(snapshot.FieldPower); ok {
		st.Power = v
	}
	if v, ok := snap.Bool(snapshot.FieldThermostat); ok {
		st.Thermostat = v
	}
	st.On = st.Power || st.Thermostat

	if v, ok := snap.Bool(snapshot.FieldPilot); ok {
		st.Pilot = v
	}
	if v, ok := snap.Int(snapshot.FieldHeight); ok {
		st.FlameHeight = v
	}
	if v, ok := snap.Int(snapshot.FieldFanSpeed); ok {
		st.FanSpeed = v
	}
	if v, ok := snap.Int(snapshot.FieldLight); ok {
		st.Light = v
	}
	if v, ok := snap.Int(snapshot.FieldSetpoint); ok {
		st.SetpointC = v
	}
	if v, ok := snap.Int(snapshot.FieldTimer); ok {
		st.TimerS = v
	}
	if v, ok := snap.Bool(snapshot.FieldFeatureLight); ok {
		st.HasLight = v
	}
	if v, ok := snap.Bool(snapshot.FieldFeatureFan); ok {
		st.HasFan = v
	}
	if v, ok := snap.Bool(snapshot.FieldFeatureThermostat); ok {
		st.HasThermostat = v
	}

	// A temperature reading is only trustworthy on thermostat-equipped
	// units; otherwise the sensor reports stale junk.
	if st.HasThermostat {
		if v, ok := snap.Int(snapshot.FieldTemperature); ok {
			st.RoomTempC = v
		}
	} else {
		st.RoomTempC = 0
	}

	if v, ok := snap.Str(snapshot.FieldFirmware); ok {
		st.Firmware = v
	}

	var newIP string
	if v, ok := snap.Str(snapshot.FieldIPAddress); ok && v != "" {
		if v != st.IPAddress {
			newIP = v
		}
		st.IPAddress = v
	}

	raised, cleared := r.diffFaults(ctx, snap, &st)
	r.updateMemory(ctx, st)

	st.UpdatedAt = time.Now().UTC()
	r.state = st
	listeners := append([]Listener{}, r.listeners...)
	r.mu.Unlock()

	if err := r.states.Save(ctx, st); err != nil {
		r.log.Errorw("state_persist_failed", "serial", r.serial, "err", err)
	}

	u := Update{
		Serial:    r.serial,
		State:     st,
		OnChanged: st.On != prevOn,
		Raised:    raised,
		Cleared:   cleared,
		NewIP:     newIP,
	}
	for _, l := range listeners {
		l.ReceiveUpdate(u)
	}
	return u
}

// diffFaults compares the reported fault codes against the previous snapshot
// and reports each raise/clear exactly once.
func (r *Reconciler) diffFaults(ctx context.Context, snap snapshot.Snapshot, st *models.DeviceState) (raised, cleared []string) {
	codes, ok := snap.IntList(snapshot.FieldErrors)
	if !ok {
		return nil, nil
	}

	current := make(map[int]struct{}, len(codes))
	names := make([]string, 0, len(codes))
	for _, code := range codes {
		current[code] = struct{}{}
		names = append(names, catalog.FaultName(code))
	}
	if len(names) == 0 {
		names = nil
	}
	st.ErrorCodes = names

	for _, code := range codes {
		if _, seen := r.prevCodes[code]; !seen {
			name := catalog.FaultName(code)
			raised = append(raised, name)
			r.log.Errorw("appliance_fault_raised", "serial", r.serial, "code", code, "fault", name)
			r.appendEvent(ctx, models.EventFaultRaised, catalog.FaultMessage(code), map[string]any{"code": code, "fault": name})
		}
	}
	for code := range r.prevCodes {
		if _, still := current[code]; !still {
			name := catalog.FaultName(code)
			cleared = append(cleared, name)
			r.log.Infow("appliance_fault_cleared", "serial", r.serial, "code", code, "fault", name)
			r.appendEvent(ctx, models.EventFaultCleared, "Fault cleared: "+name, map[string]any{"code": code, "fault": name})
		}
	}
	r.prevCodes = current
	return raised, cleared
}

// updateMemory retains the latest non-zero fan/light/setpoint values so they
// can be restored after the appliance resets them on disable.
func (r *Reconciler) updateMemory(ctx context.Context, st models.DeviceState) {
	mem := r.memory
	if st.FanSpeed > 0 {
		mem.FanSpeed = st.FanSpeed
	}
	if st.Light > 0 {
		mem.Light = st.Light
	}
	if st.SetpointC > 0 {
		mem.SetpointC = st.SetpointC
	}
	if mem == r.memory {
		return
	}
	r.memory = mem
	if err := r.retained.Save(ctx, r.serial, mem); err != nil {
		r.log.Errorw("retained_persist_failed", "serial", r.serial, "err", err)
	}
}

func (r *Reconciler) appendEvent(ctx context.Context, typ, description string, meta map[string]any) {
	err := r.events.Append(ctx, models.FireplaceEvent{
		Serial:      r.serial,
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		r.log.Errorw("event_append_failed", "serial", r.serial, "err", err)
	}
}
