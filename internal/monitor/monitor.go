// Package monitor composes the session classifier, availability checker,
// cadence scheduler, and purchase coordinator into the run-loop state
// machine. One Monitor instance drives one product to a terminal result.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"grabbit/internal/browser"
	"grabbit/internal/cadence"
	"grabbit/internal/checkout"
	"grabbit/internal/cookies"
	"grabbit/internal/product"
	"grabbit/internal/session"
)

// State names the orchestrator's position in the run.
type State int

const (
	Init State = iota
	SessionCheck
	Reauthenticating
	Monitoring
	Purchasing
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case SessionCheck:
		return "session_check"
	case Reauthenticating:
		return "reauthenticating"
	case Monitoring:
		return "monitoring"
	case Purchasing:
		return "purchasing"
	case Succeeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Result is the terminal outcome of a run.
type Result struct {
	Purchased bool
	Reason    string
}

// SessionChecker validates the authenticated session.
type SessionChecker interface {
	QuickCheck(ctx context.Context, cap browser.Capability) (session.State, error)
	FullCheck(ctx context.Context, cap browser.Capability) (session.State, error)
}

// Authenticator establishes a fresh session.
type Authenticator interface {
	Login(ctx context.Context, cap browser.Capability) error
}

// AvailabilityChecker classifies the product page.
type AvailabilityChecker interface {
	Check(ctx context.Context, cap browser.Capability) (product.Verdict, error)
}

// Purchaser drives a purchasable verdict to completion.
type Purchaser interface {
	Purchase(ctx context.Context, cap browser.Capability, verdict product.Verdict) error
}

// FillerRunner performs cadence-varying idle browsing.
type FillerRunner interface {
	Browse(ctx context.Context, cap browser.Capability)
}

// Deps wires the collaborating components. Cookies may be nil; everything
// else is required.
type Deps struct {
	Capability browser.Capability
	Session    SessionChecker
	Auth       Authenticator
	Product    AvailabilityChecker
	Checkout   Purchaser
	Filler     FillerRunner
	Scheduler  *cadence.Scheduler
	Cookies    *cookies.Store
}

// Monitor is the run-loop orchestrator. Single-threaded: Run owns all
// state; only the capability release is guarded for reentry.
type Monitor struct {
	deps Deps
	log  *zap.Logger

	state       State
	trace       []State
	releaseOnce sync.Once
}

func New(deps Deps, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{deps: deps, log: log, state: Init, trace: []State{Init}}
}

// Trace returns the transition history, for logging and diagnosis.
func (m *Monitor) Trace() []State {
	out := make([]State, len(m.trace))
	copy(out, m.trace)
	return out
}

func (m *Monitor) transition(to State) {
	m.log.Info("state transition",
		zap.Stringer("from", m.state),
		zap.Stringer("to", to))
	m.state = to
	m.trace = append(m.trace, to)
}

// release closes the browser capability exactly once, on any terminal path.
func (m *Monitor) release() {
	m.releaseOnce.Do(func() {
		if err := m.deps.Capability.Close(); err != nil {
			m.log.Warn("browser release failed", zap.Error(err))
		}
	})
}

// Run drives the state machine to a terminal result. The context is the
// external stop signal, checked at the top of every tick; cancellation
// never aborts a sequence mid-step.
func (m *Monitor) Run(ctx context.Context) Result {
	defer m.release()

	m.transition(SessionCheck)
	m.loadCookies(ctx)

	state, err := m.checkSession(ctx, true)
	if err != nil {
		return m.fail(fmt.Sprintf("session check failed: %v", err))
	}
	if state != session.Valid {
		if reason, ok := m.reauthenticate(ctx, state); !ok {
			return m.fail(reason)
		}
	}

	m.transition(Monitoring)
	return m.watch(ctx)
}

// watch is the monitoring loop: cadence decisions, availability checks,
// purchase handoffs, jittered sleeps.
func (m *Monitor) watch(ctx context.Context) Result {
	for {
		if err := ctx.Err(); err != nil {
			return m.fail("stopped")
		}

		if m.deps.Scheduler.ShouldCheckSession() {
			state, err := m.checkSession(ctx, false)
			if err != nil {
				return m.fail(fmt.Sprintf("session check failed: %v", err))
			}
			if state != session.Valid {
				if reason, ok := m.reauthenticate(ctx, state); !ok {
					return m.fail(reason)
				}
				m.transition(Monitoring)
			}
		}

		if m.deps.Scheduler.ShouldRunFiller() {
			m.runFiller(ctx)
		}

		verdict, err := m.checkAvailability(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return m.fail("stopped")
			}
			m.log.Warn("availability check failed", zap.Error(err))
		}

		if verdict.Purchasable() {
			m.transition(Purchasing)
			if m.purchase(ctx, verdict) {
				m.transition(Succeeded)
				return Result{Purchased: true}
			}
			m.transition(Monitoring)
			continue
		}

		interval := m.deps.Scheduler.NextInterval()
		m.log.Info("item not available",
			zap.Int("checks", m.deps.Scheduler.Checks()),
			zap.Duration("next_check_in", interval))
		if err := m.deps.Capability.Sleep(ctx, interval); err != nil {
			return m.fail("stopped")
		}
	}
}

// checkSession runs the quick probe at startup and the full heuristic
// check on the periodic cadence, each as one atomic sequence.
func (m *Monitor) checkSession(ctx context.Context, quick bool) (session.State, error) {
	var state session.State
	err := m.deps.Capability.Sequence(ctx, func(ctx context.Context) error {
		var err error
		if quick {
			state, err = m.deps.Session.QuickCheck(ctx, m.deps.Capability)
		} else {
			state, err = m.deps.Session.FullCheck(ctx, m.deps.Capability)
		}
		return err
	})
	return state, err
}

// reauthenticate makes the single permitted login attempt. A Blocked
// verdict still gets this one attempt, never a retry loop.
func (m *Monitor) reauthenticate(ctx context.Context, state session.State) (string, bool) {
	if state == session.Blocked {
		m.log.Warn("session blocked by bot detection, attempting one fresh login")
	} else {
		m.log.Info("session invalid, attempting fresh login")
	}

	m.transition(Reauthenticating)
	err := m.deps.Capability.Sequence(ctx, func(ctx context.Context) error {
		return m.deps.Auth.Login(ctx, m.deps.Capability)
	})
	if err != nil {
		return fmt.Sprintf("authentication failed: %v", err), false
	}
	m.saveCookies(ctx)
	return "", true
}

func (m *Monitor) runFiller(ctx context.Context) {
	_ = m.deps.Capability.Sequence(ctx, func(ctx context.Context) error {
		m.deps.Filler.Browse(ctx, m.deps.Capability)
		return nil
	})
}

func (m *Monitor) checkAvailability(ctx context.Context) (product.Verdict, error) {
	var verdict product.Verdict
	err := m.deps.Capability.Sequence(ctx, func(ctx context.Context) error {
		var err error
		verdict, err = m.deps.Product.Check(ctx, m.deps.Capability)
		return err
	})
	return verdict, err
}

// purchase reports success; any failure resumes monitoring.
func (m *Monitor) purchase(ctx context.Context, verdict product.Verdict) bool {
	err := m.deps.Capability.Sequence(ctx, func(ctx context.Context) error {
		return m.deps.Checkout.Purchase(ctx, m.deps.Capability, verdict)
	})
	if err == nil {
		m.log.Info("purchase complete")
		return true
	}
	if errors.Is(err, checkout.ErrCheckout) {
		m.log.Warn("purchase attempt failed, resuming monitoring", zap.Error(err))
	} else {
		m.log.Warn("purchase step error, resuming monitoring", zap.Error(err))
	}
	return false
}

func (m *Monitor) fail(reason string) Result {
	m.transition(Failed)
	m.log.Error("run failed", zap.String("reason", reason))
	return Result{Reason: reason}
}

// loadCookies opportunistically seeds the browser with a saved jar.
func (m *Monitor) loadCookies(ctx context.Context) {
	if m.deps.Cookies == nil {
		return
	}
	jar, ok, err := m.deps.Cookies.Load()
	if err != nil {
		m.log.Warn("cookie load failed", zap.Error(err))
		return
	}
	if !ok || len(jar) == 0 {
		return
	}
	if err := m.deps.Capability.SetCookies(ctx, jar); err != nil {
		m.log.Warn("cookie restore failed", zap.Error(err))
		return
	}
	if age, ok := m.deps.Cookies.Age(); ok {
		m.log.Info("restored saved session cookies",
			zap.Int("count", len(jar)),
			zap.Duration("age", age))
	}
}

// saveCookies persists the jar after a successful login.
func (m *Monitor) saveCookies(ctx context.Context) {
	if m.deps.Cookies == nil {
		return
	}
	jar, err := m.deps.Capability.Cookies(ctx)
	if err != nil {
		m.log.Warn("cookie read failed", zap.Error(err))
		return
	}
	if err := m.deps.Cookies.Save(jar); err != nil {
		m.log.Warn("cookie save failed", zap.Error(err))
	}
}
