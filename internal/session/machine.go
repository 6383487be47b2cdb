package session

import (
	"context"
	"sync"

	olog "ohhell-server/internal/log"
	"ohhell-server/internal/protocol"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

const defaultInboxSize = 64

// Exporter delivers snapshots to connected slots.
type Exporter interface {
	Queue(slot int, payload []byte) bool
	Drop(slot int) bool
}

// Observer is told about every trigger bump after the state it describes
// has been exported.
type Observer func(b Bump, st Status)

type eventKind int

const (
	connected eventKind = iota
	disconnected
	command
)

type event struct {
	kind eventKind
	slot int
	cmd  protocol.Command
}

// Machine serialises connection events onto one goroutine that owns the
// Engine. It satisfies the transport's handler interface.
type Machine struct {
	engine   *Engine
	inbox    chan event
	exporter Exporter
	observer Observer
	rejected map[int]bool

	mu     sync.RWMutex
	status Status
	done   chan struct{}
}

// MachineCfg configures a Machine.
type MachineCfg func(*Machine) error

func WithObserver(o Observer) MachineCfg {
	return func(m *Machine) error {
		m.observer = o
		return nil
	}
}

func WithInboxSize(n int) MachineCfg {
	return func(m *Machine) error {
		if n < 1 {
			return errors.Errorf("inbox size %d", n)
		}
		m.inbox = make(chan event, n)
		return nil
	}
}

func NewMachine(engine *Engine, cfgs ...MachineCfg) (*Machine, error) {
	m := &Machine{
		engine:   engine,
		inbox:    make(chan event, defaultInboxSize),
		rejected: make(map[int]bool),
		status:   engine.Status(),
		done:     make(chan struct{}),
	}
	for _, cfg := range cfgs {
		if err := cfg(m); err != nil {
			return nil, errors.Wrap(err, "apply Machine cfg failed")
		}
	}
	return m, nil
}

// SetExporter must be called before Run.
func (m *Machine) SetExporter(x Exporter) {
	m.exporter = x
}

func (m *Machine) Connected(slot int) {
	m.enqueue(event{kind: connected, slot: slot})
}

func (m *Machine) Disconnected(slot int) {
	m.enqueue(event{kind: disconnected, slot: slot})
}

// HandleClientMessage queues cmd for the engine. Terminate asks the
// transport to drop the connection; keep-alives are consumed here.
func (m *Machine) HandleClientMessage(slot int, cmd protocol.Command) protocol.Effect {
	switch cmd.Code {
	case protocol.CodeTerminate:
		return protocol.EffectClose
	case protocol.CodeKeepAlive:
		return protocol.EffectNone
	}
	m.enqueue(event{kind: command, slot: slot, cmd: cmd})
	return protocol.EffectQueued
}

func (m *Machine) enqueue(ev event) {
	select {
	case m.inbox <- ev:
	case <-m.done:
	}
}

// Done is closed once Run has returned.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Status returns the state as of the last processed event.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Run processes events until the tournament finishes, a player leaves a
// game in progress, or ctx is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	defer close(m.done)
	if m.exporter == nil {
		return errors.New("machine has no exporter")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.inbox:
			err := m.apply(ev)
			m.publish()
			if err != nil {
				return err
			}
			if m.engine.Phase() == Finished {
				logger.Info("tournament finished")
				return nil
			}
		}
	}
}

// apply feeds one event to the engine and exports snapshots if it changed
// anything. Rejected commands export nothing, so clients never see a
// snapshot that differs only in a refusal.
func (m *Machine) apply(ev event) error {
	switch ev.kind {
	case connected:
		if err := m.engine.Connect(ev.slot); err != nil {
			logger.WithField("slot", ev.slot).WithError(err).Warn("connection refused by session")
			m.rejected[ev.slot] = true
			m.exporter.Drop(ev.slot)
			return nil
		}
		logger.WithField("slot", ev.slot).Debug("seat connected")

	case disconnected:
		if m.rejected[ev.slot] {
			delete(m.rejected, ev.slot)
			return nil
		}
		if err := m.engine.Disconnect(ev.slot); err != nil {
			logger.WithField("slot", ev.slot).WithError(err).Error("session aborted")
			return err
		}
		logger.WithField("slot", ev.slot).Info("seat disconnected")

	case command:
		if m.rejected[ev.slot] {
			return nil
		}
		fields := olog.CommandFields(ev.slot, ev.cmd)
		if err := m.engine.Handle(ev.slot, ev.cmd); err != nil {
			logger.WithFields(fields).WithError(err).Warn("command rejected")
			return nil
		}
		logger.WithFields(fields).Debug("command accepted")
	}

	m.export()
	return nil
}

// export queues a fresh snapshot for every connected seat.
func (m *Machine) export() {
	for _, p := range m.engine.Roster().Seated() {
		if !p.Connected {
			continue
		}
		snap := m.engine.Snapshot(p.Slot)
		if !m.exporter.Queue(p.Slot, []byte(snap.Encode())) {
			logger.WithField("slot", p.Slot).Debug("no outbox for seat")
			continue
		}
		logger.WithFields(olog.SnapshotFields(snap)).WithField("slot", p.Slot).Trace("snapshot queued")
	}
}

// publish refreshes the status and reports the bumps of the last event.
// Bumps are drained even without an observer so they cannot pile up.
func (m *Machine) publish() {
	st := m.engine.Status()
	m.mu.Lock()
	m.status = st
	m.mu.Unlock()

	if m.observer == nil {
		m.engine.DrainBumps()
		return
	}
	for _, b := range m.engine.DrainBumps() {
		m.observer(b, st)
	}
}
