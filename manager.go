// Copyright 2026 The Spv Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spv

import (
	"context"
	"fmt"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/localdev/spv/pkg/config"
)

// Info is the read-only snapshot of a ServerState handed out to callers
// outside the Manager's lock (the Control API, the CLI). It never aliases
// mutable Manager-owned memory.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Port       int    `json:"port,omitempty"`
	Status     string `json:"status"`
	Healthy    bool   `json:"healthy"`
	LastError  string `json:"lastError,omitempty"`
	PID        int    `json:"pid"`
	CrashCount int    `json:"crashCount"`
	InCooldown bool   `json:"inCooldown"`
}

// Event is posted to subscribers on a change to a server's status or
// health, decoupling how the Manager computes state from
// whatever consumes it (CLI polling, a future UI, tests).
type Event struct {
	ID     string
	Status string
}

// Manager is the single serialization point for every managed server's
// runtime state. There is exactly one Manager per process, built with
// New; nothing here is a package-level singleton.
//
// One mutex guards the whole table; servers are independent of each
// other (no dependency graph between them), each driven by its own
// crash governor and timers.
type Manager struct {
	mu     sync.Mutex
	table  *orderedmap.OrderedMap[string, *ServerState]
	logger *zap.SugaredLogger
	extra  []string
	timers map[string]*time.Timer

	subMu sync.Mutex
	subs  map[chan Event]struct{}

	settingsPath string
}

// New constructs a Manager from settings. It does not start any servers;
// callers drive autostart explicitly (see StartAutostart) so that CLI
// tools embedding this package can decide when processes first launch.
func New(settingsPath string, settings *config.Settings, extraPaths []string, logger *zap.SugaredLogger) *Manager {
	m := &Manager{
		table:        orderedmap.New[string, *ServerState](),
		logger:       logger,
		extra:        extraPaths,
		timers:       make(map[string]*time.Timer),
		subs:         make(map[chan Event]struct{}),
		settingsPath: settingsPath,
	}
	for _, spec := range settings.Servers {
		m.table.Set(spec.ID, newServerState(spec))
	}
	return m
}

// Subscribe registers a channel that receives an Event after every status
// or health change. The channel is buffered; a slow subscriber drops
// events rather than blocking the Manager.
func (m *Manager) Subscribe() chan Event {
	ch := make(chan Event, 32)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *Manager) Unsubscribe(ch chan Event) {
	m.subMu.Lock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
	m.subMu.Unlock()
}

func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// StartAutostart starts every server whose spec has AutoStart set, in
// configuration order.
func (m *Manager) StartAutostart() {
	m.mu.Lock()
	var ids []string
	for pair := m.table.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Spec.AutoStart {
			ids = append(ids, pair.Key)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Start(id); err != nil {
			m.logger.Warnw("autostart failed", "id", id, "err", err)
		}
	}
}

func (m *Manager) get(id string) (*ServerState, bool) {
	return m.table.Get(id)
}

// Start launches id's process if it is not already running. It is a
// no-op returning nil if id is already Running or Starting, and
// returns ErrServerNotFound if id isn't configured.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	st, ok := m.get(id)
	if !ok {
		m.mu.Unlock()
		return ErrServerNotFound
	}
	if st.Status == StatusRunning || st.Status == StatusStarting {
		m.mu.Unlock()
		return nil
	}
	if conflict := m.portConflict(id, st.Spec.Port); conflict != "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: port %d already claimed by %q", ErrPortConflict, st.Spec.Port, conflict)
	}

	st.Status = StatusStarting
	st.LastError = ""
	st.requested = false
	spec := st.Spec
	logs := st.Logs
	m.mu.Unlock()
	m.publish(Event{ID: id, Status: StatusStarting.String()})

	r, err := spawn(id, spec, m.extra, logs, m.logger)
	if err != nil {
		m.mu.Lock()
		st.Status = StatusCrashed
		st.LastError = err.Error()
		m.mu.Unlock()
		m.publish(Event{ID: id, Status: StatusCrashed.String()})
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	st.child = r
	st.PID = r.Pid()
	st.Status = StatusRunning
	st.healthCancel = cancel
	m.mu.Unlock()
	m.publish(Event{ID: id, Status: StatusRunning.String()})

	go runHealthProbe(ctx, spec.EffectiveHostname(), spec.Port, func(healthy bool) {
		m.setHealthy(id, healthy)
	})
	go m.awaitExit(id, r)

	return nil
}

// portConflict returns the id of another server already running on port,
// or "" if there is none. Enforced at spawn time, not at settings-load
// time: two servers may share a configured port as long as only one of
// them is ever started at once.
func (m *Manager) portConflict(excludeID string, port int) string {
	if port == 0 {
		return ""
	}
	for pair := m.table.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == excludeID {
			continue
		}
		st := pair.Value
		if st.Spec.Port == port && (st.Status == StatusRunning || st.Status == StatusStarting) {
			return pair.Key
		}
	}
	return ""
}

// awaitExit blocks on r.wait() off the Manager's lock, then hands the
// result back to handleExit. One of these runs per live child.
func (m *Manager) awaitExit(id string, r *runner) {
	ev := r.wait()
	m.handleExit(id, ev)
}

func (m *Manager) handleExit(id string, ev ExitEvent) {
	m.mu.Lock()
	st, ok := m.get(id)
	if !ok {
		m.mu.Unlock()
		return
	}
	if st.healthCancel != nil {
		st.healthCancel()
		st.healthCancel = nil
	}
	st.child = nil
	st.PID = 0
	st.Healthy = false

	requested := st.requested
	st.requested = false

	if ev.Err != nil {
		st.LastError = ev.Err.Error()
	} else if ev.ExitCode != 0 {
		st.LastError = fmt.Sprintf("exited with code %d", ev.ExitCode)
	}

	if requested {
		st.Status = StatusStopped
		st.CrashTimes = nil
		m.mu.Unlock()
		m.publish(Event{ID: id, Status: StatusStopped.String()})
		return
	}

	// Unexpected exit: run the crash governor.
	now := time.Now()
	times, cooldown := recordCrash(st.CrashTimes, now)
	st.CrashTimes = times
	logs := st.Logs

	if cooldown {
		st.Status = StatusCooldown
		st.InCooldown = true
		m.mu.Unlock()
		logs.Append(fmt.Sprintf("[system] Too many crashes — cooldown for %d minutes", int(cooldownDuration/time.Minute)))
		m.publish(Event{ID: id, Status: StatusCooldown.String()})
		m.scheduleRestart(id, cooldownDuration)
		return
	}

	st.Status = StatusCrashed
	m.mu.Unlock()
	logs.Append(fmt.Sprintf("[system] Crashed — restarting (%d/%d)", len(times), maxCrashes))
	m.publish(Event{ID: id, Status: StatusCrashed.String()})
	m.scheduleRestart(id, restartBackoffOnCrash)
}

// scheduleRestart arranges for id to be (re)started after delay, keyed
// by id in the Manager's own timer map: a timer is explicitly cancelled
// by Stop before it can fire against a server the caller meant to keep
// down.
func (m *Manager) scheduleRestart(id string, delay time.Duration) {
	m.mu.Lock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}
	m.timers[id] = time.AfterFunc(delay, func() {
		m.mu.Lock()
		st, ok := m.get(id)
		if !ok || (st.Status != StatusCrashed && st.Status != StatusCooldown) {
			m.mu.Unlock()
			return
		}
		wasCooldown := st.Status == StatusCooldown
		st.InCooldown = false
		if wasCooldown {
			st.CrashTimes = nil
		}
		logs := st.Logs
		m.mu.Unlock()
		if wasCooldown {
			logs.Append("[system] Cooldown elapsed — resuming")
		}
		if err := m.Start(id); err != nil {
			m.logger.Warnw("governed restart failed", "id", id, "err", err)
		}
	})
	m.mu.Unlock()
}

func (m *Manager) cancelTimer(id string) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) setHealthy(id string, healthy bool) {
	m.mu.Lock()
	st, ok := m.get(id)
	if !ok || st.Status != StatusRunning {
		m.mu.Unlock()
		return
	}
	changed := st.Healthy != healthy
	st.Healthy = healthy
	m.mu.Unlock()
	if changed {
		m.publish(Event{ID: id, Status: StatusRunning.String()})
	}
}

// Stop asks id's running process to exit and returns without waiting
// for it: the SIGTERM/grace/SIGKILL sequence runs on its own goroutine,
// and the already-running awaitExit/handleExit pair reports completion.
// It is a no-op returning nil if id is already Stopped, and reaches
// Stopped immediately (no live child to signal) if id is Crashed or in
// Cooldown.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	st, ok := m.get(id)
	if !ok {
		m.mu.Unlock()
		return ErrServerNotFound
	}
	switch st.Status {
	case StatusStopped:
		m.mu.Unlock()
		return nil
	case StatusCrashed, StatusCooldown:
		// stop() reaches Stopped from any non-terminal state; there is
		// no live child to signal, so the transition is immediate.
		m.cancelTimer(id)
		st.Status = StatusStopped
		st.InCooldown = false
		st.CrashTimes = nil
		m.mu.Unlock()
		m.publish(Event{ID: id, Status: StatusStopped.String()})
		return nil
	}
	st.requested = true
	m.cancelTimer(id)
	child := st.child
	m.mu.Unlock()

	if child != nil {
		go child.stop()
	}
	return nil
}

// Restart stops id (if running) and starts it again after a short
// settle, resetting the crash governor regardless of the state it
// found id in.
func (m *Manager) Restart(id string) error {
	if err := m.Stop(id); err != nil {
		return err
	}
	m.waitStopped(id, 5*time.Second)
	time.Sleep(500 * time.Millisecond)

	m.mu.Lock()
	if st, ok := m.get(id); ok {
		st.CrashTimes = nil
		st.InCooldown = false
	}
	m.mu.Unlock()

	return m.Start(id)
}

// waitStopped polls, briefly, for a server to leave Running/Starting.
// stop() itself blocks up to stopGracePeriod plus SIGKILL; this just
// keeps Restart from racing Start against a child still tearing down.
func (m *Manager) waitStopped(id string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		st, ok := m.get(id)
		running := ok && (st.Status == StatusRunning || st.Status == StatusStarting)
		m.mu.Unlock()
		if !running {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// forceStopState kills st's child directly, without looking st back up
// by id, then sweeps st's port. Used by ReloadSettings to tear down
// every server before the table is rebuilt.
func (m *Manager) forceStopState(st *ServerState) {
	m.mu.Lock()
	st.requested = true
	child := st.child
	port := st.Spec.Port
	m.mu.Unlock()

	if child != nil {
		child.forceStop()
	}
	killByPort(port, m.logger)
}

// ClearLogs empties id's Log Buffer.
func (m *Manager) ClearLogs(id string) error {
	m.mu.Lock()
	st, ok := m.get(id)
	m.mu.Unlock()
	if !ok {
		return ErrServerNotFound
	}
	st.Logs.Clear()
	return nil
}

// GetLogs returns the last n lines for id.
func (m *Manager) GetLogs(id string, n int) ([]LogLine, error) {
	m.mu.Lock()
	st, ok := m.get(id)
	m.mu.Unlock()
	if !ok {
		return nil, ErrServerNotFound
	}
	return st.Logs.Snapshot(n), nil
}

// LogSize returns id's current buffered log line count, for the Control
// API's totalLines field.
func (m *Manager) LogSize(id string) (int, error) {
	m.mu.Lock()
	st, ok := m.get(id)
	m.mu.Unlock()
	if !ok {
		return 0, ErrServerNotFound
	}
	return st.Logs.Size(), nil
}

// StartAll starts every configured server that is not already running.
func (m *Manager) StartAll() []error {
	var errs []error
	for _, id := range m.ids() {
		if err := m.Start(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errs
}

// StopAll gracefully stops every running server.
func (m *Manager) StopAll() []error {
	var errs []error
	for _, id := range m.ids() {
		if err := m.Stop(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errs
}

// ForceStopAll is the Shutdown Coordinator's hammer, and the one
// Manager method allowed to block its caller: SIGKILL every tracked
// child's process group immediately, wait a brief moment for those
// kills to land, sweep every configured port by lsof for survivors (a
// child that forked and detached leaves no pid the Manager still knows
// about), then wait again for the ports to actually free.
func (m *Manager) ForceStopAll() {
	m.mu.Lock()
	var states []*ServerState
	for pair := m.table.Oldest(); pair != nil; pair = pair.Next() {
		m.cancelTimer(pair.Key)
		states = append(states, pair.Value)
	}
	m.mu.Unlock()

	for _, st := range states {
		m.mu.Lock()
		st.requested = true
		child := st.child
		m.mu.Unlock()
		if child != nil {
			child.forceStop()
		}
	}

	time.Sleep(500 * time.Millisecond)

	for _, st := range states {
		killByPort(st.Spec.Port, m.logger)
	}

	time.Sleep(1 * time.Second)
}

func (m *Manager) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, m.table.Len())
	for pair := m.table.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// GetInfo returns a point-in-time snapshot of id.
func (m *Manager) GetInfo(id string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.get(id)
	if !ok {
		return Info{}, ErrServerNotFound
	}
	return infoFromState(st), nil
}

// ListInfo returns a snapshot of every server, in configuration order.
func (m *Manager) ListInfo() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, m.table.Len())
	for pair := m.table.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, infoFromState(pair.Value))
	}
	return out
}

func infoFromState(st *ServerState) Info {
	return Info{
		ID:         st.Spec.ID,
		Name:       st.Spec.Name,
		Port:       st.Spec.Port,
		Status:     st.Status.String(),
		Healthy:    st.Healthy,
		LastError:  st.LastError,
		PID:        st.PID,
		CrashCount: len(st.CrashTimes),
		InCooldown: st.InCooldown,
	}
}

// ReloadSettings stops every currently configured server, drops all
// runtime state, re-reads settings from disk, and rebuilds the table
// from scratch — every surviving id comes back Stopped. It is safe to
// call while servers are running. Reload never auto-starts anything on
// its own, including AutoStart servers reintroduced by the reload —
// callers that want that call StartAutostart explicitly afterward.
func (m *Manager) ReloadSettings() error {
	m.mu.Lock()
	var current []*ServerState
	for pair := m.table.Oldest(); pair != nil; pair = pair.Next() {
		m.cancelTimer(pair.Key)
		current = append(current, pair.Value)
	}
	m.mu.Unlock()

	for _, st := range current {
		m.forceStopState(st)
	}
	for _, st := range current {
		m.waitStopped(st.Spec.ID, 5*time.Second)
	}

	settings, err := config.Load(m.settingsPath)
	if err != nil {
		m.mu.Lock()
		m.table = orderedmap.New[string, *ServerState]()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.table = orderedmap.New[string, *ServerState]()
	for _, spec := range settings.Servers {
		m.table.Set(spec.ID, newServerState(spec))
	}
	m.mu.Unlock()
	return nil
}
