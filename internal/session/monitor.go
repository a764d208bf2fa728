// Package session implements the inactivity-timeout state machine that signs
// idle users out. The monitor owns a single last-activity timestamp; every
// qualifying interaction resets it and reschedules the warning and timeout
// callbacks from zero, so an active user never times out.
package session

import (
	"errors"
	"sync"
	"time"
)

var ErrAlreadyStarted = errors.New("monitor already started")

// Interaction kinds accepted by Touch. Anything else is ignored so arbitrary
// client frames cannot keep a session alive.
const (
	ActivityPointer = "pointer"
	ActivityKey     = "key"
	ActivityTouch   = "touch"
	ActivityScroll  = "scroll"
)

// State of the monitor's lifecycle.
type State int

const (
	StateStopped State = iota
	StateActive
	StateWarning
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Clock abstracts time.Now so tests can drive the monitor deterministically.
type Clock interface {
	Now() time.Time
}

// CancelFunc cancels a scheduled callback. It reports whether the callback
// was cancelled before firing.
type CancelFunc func() bool

// Scheduler abstracts timer creation. The production implementation wraps
// time.AfterFunc; tests substitute a fake that fires on demand.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) CancelFunc
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Config controls a Monitor. Timeout must exceed Warning; OnWarning receives
// the time remaining until sign-out, OnTimeout performs the external
// sign-out. Clock and Scheduler default to wall-clock implementations.
type Config struct {
	Timeout   time.Duration
	Warning   time.Duration
	OnWarning func(remaining time.Duration)
	OnTimeout func()
	Clock     Clock
	Scheduler Scheduler
}

// Monitor tracks last activity for one session and drives the
// Stopped -> Active -> (Warning)? -> TimedOut -> Stopped lifecycle.
// All methods are safe for concurrent use.
type Monitor struct {
	mu            sync.Mutex
	cfg           Config
	state         State
	lastActivity  time.Time
	cancelWarning CancelFunc
	cancelTimeout CancelFunc
}

// NewMonitor creates a stopped monitor. Call Start to arm it.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = timerScheduler{}
	}
	if cfg.Warning <= 0 || cfg.Warning >= cfg.Timeout {
		cfg.Warning = cfg.Timeout / 5
	}
	return &Monitor{cfg: cfg, state: StateStopped}
}

// Start arms the monitor, setting last activity to now and scheduling the
// warning and timeout callbacks.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateStopped && m.state != StateTimedOut {
		return ErrAlreadyStarted
	}

	m.state = StateActive
	m.lastActivity = m.cfg.Clock.Now()
	m.schedule()
	return nil
}

// IsActivityKind reports whether kind is an interaction Touch will accept.
func IsActivityKind(kind string) bool {
	switch kind {
	case ActivityPointer, ActivityKey, ActivityTouch, ActivityScroll:
		return true
	default:
		return false
	}
}

// Touch records a qualifying interaction, resetting the idle clock and
// rescheduling both callbacks. Unknown kinds and calls on a non-active
// monitor are ignored.
func (m *Monitor) Touch(kind string) {
	if !IsActivityKind(kind) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive && m.state != StateWarning {
		return
	}

	m.state = StateActive
	m.lastActivity = m.cfg.Clock.Now()
	m.cancelPending()
	m.schedule()
}

// Stop cancels pending callbacks and returns the monitor to Stopped.
// Idempotent and safe from any state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelPending()
	m.state = StateStopped
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the time left until timeout, clamped at zero.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive && m.state != StateWarning {
		return 0
	}
	remaining := m.cfg.Timeout - m.cfg.Clock.Now().Sub(m.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// schedule arms both callbacks relative to now. Caller holds m.mu.
func (m *Monitor) schedule() {
	m.cancelWarning = m.cfg.Scheduler.AfterFunc(m.cfg.Timeout-m.cfg.Warning, m.fireWarning)
	m.cancelTimeout = m.cfg.Scheduler.AfterFunc(m.cfg.Timeout, m.fireTimeout)
}

// cancelPending stops any armed callbacks. Caller holds m.mu.
func (m *Monitor) cancelPending() {
	if m.cancelWarning != nil {
		m.cancelWarning()
		m.cancelWarning = nil
	}
	if m.cancelTimeout != nil {
		m.cancelTimeout()
		m.cancelTimeout = nil
	}
}

func (m *Monitor) fireWarning() {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.state = StateWarning
	remaining := m.cfg.Timeout - m.cfg.Clock.Now().Sub(m.lastActivity)
	if remaining < 0 {
		remaining = 0
	}
	onWarning := m.cfg.OnWarning
	m.mu.Unlock()

	if onWarning != nil {
		onWarning(remaining)
	}
}

func (m *Monitor) fireTimeout() {
	m.mu.Lock()
	if m.state != StateActive && m.state != StateWarning {
		m.mu.Unlock()
		return
	}
	m.state = StateTimedOut
	m.cancelPending()
	onTimeout := m.cfg.OnTimeout
	m.mu.Unlock()

	if onTimeout != nil {
		onTimeout()
	}

	// Timed out monitors settle in Stopped; Start may rearm them.
	m.mu.Lock()
	if m.state == StateTimedOut {
		m.state = StateStopped
	}
	m.mu.Unlock()
}
