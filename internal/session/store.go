package session

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/metrics"
)

// Store is the narrow contract the transport and auth layers depend on.
//
// Set replaces the whole session atomically. Clear resets to the
// unauthenticated session and is idempotent. Current never blocks on writers.
type Store interface {
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
	Current() Session
}

// Listener observes session transitions. Listeners run synchronously while
// the writer lock is held and must not call Set or Clear.
type Listener func(previous, current Session)

// Manager is the process-wide Store implementation.
type Manager struct {
	current atomic.Pointer[Session]

	// writeMu serialises writers so record writes and listener calls happen
	// in mutation order.
	writeMu   sync.Mutex
	listeners []Listener

	carrier Carrier
	record  Record
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecord persists sessions to r. Ignored for cookie carriers, whose
// proof lives server-side.
func WithRecord(r Record) Option {
	return func(m *Manager) { m.record = r }
}

// WithLogger sets the logger used for transitions and record failures.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics counts clears.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager holding the unauthenticated session.
func NewManager(carrier Carrier, opts ...Option) *Manager {
	m := &Manager{
		carrier: carrier,
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if carrier == CarrierCookie {
		m.record = nil
	}
	m.current.Store(&Session{})
	return m
}

// Carrier returns where this manager expects the session proof to live.
func (m *Manager) Carrier() Carrier {
	return m.carrier
}

// Current returns the current session.
func (m *Manager) Current() Session {
	return *m.current.Load()
}

// Subscribe registers a listener for every subsequent transition.
func (m *Manager) Subscribe(l Listener) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Set replaces the current session. An authenticated session must carry a
// credential for bearer carriers and must not carry one for cookie carriers.
func (m *Manager) Set(ctx context.Context, s Session) error {
	if err := m.validate(s); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	next := s
	previous := *m.current.Swap(&next)
	m.notify(previous, next)

	if m.record != nil && next.Authenticated {
		if err := m.record.Save(ctx, next); err != nil {
			m.logger.WithError(err).Warn("failed to persist session record")
		}
	}

	m.logger.Info("session set", "username", next.Identity.Username, "origin", string(next.Origin))
	return nil
}

// Clear resets to the unauthenticated session and removes the record.
// The record is removed even when nothing was held in memory, so a record
// that failed to rehydrate can still be discarded. Listeners and metrics
// only see real transitions.
func (m *Manager) Clear(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	previous := *m.current.Swap(&Session{})
	if m.record != nil {
		if err := m.record.Delete(ctx); err != nil {
			m.logger.WithError(err).Warn("failed to delete session record")
		}
	}
	if previous.IsZero() {
		return nil
	}
	m.notify(previous, Session{})

	if m.metrics != nil {
		m.metrics.SessionClears.Inc()
	}

	m.logger.Warn("session cleared", "username", previous.Identity.Username)
	return nil
}

// Rehydrate loads the advisory record into memory. It reports whether a
// session was restored. Cookie carriers never rehydrate; expired records are
// deleted and ignored.
func (m *Manager) Rehydrate(ctx context.Context) (bool, error) {
	if m.carrier == CarrierCookie || m.record == nil {
		return false, nil
	}

	s, err := m.record.Load(ctx)
	if stderrors.Is(err, ErrNoRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if s.Expired(m.now()) || !s.HasCredential() {
		m.logger.Info("discarding stale session record", "username", s.Identity.Username)
		if err := m.record.Delete(ctx); err != nil {
			m.logger.WithError(err).Warn("failed to delete stale session record")
		}
		return false, nil
	}

	s.Authenticated = true
	s.Origin = OriginRecord

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	previous := *m.current.Swap(s)
	m.notify(previous, *s)
	return true, nil
}

func (m *Manager) validate(s Session) error {
	if !s.Authenticated {
		if s.HasCredential() {
			return errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation,
				"an unauthenticated session cannot hold a credential")
		}
		return nil
	}
	switch m.carrier {
	case CarrierBearer:
		if !s.HasCredential() {
			return errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation,
				"bearer sessions require a credential")
		}
	case CarrierCookie:
		if s.HasCredential() || s.RefreshToken != "" {
			return errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation,
				"cookie sessions must not hold a credential")
		}
	}
	return nil
}

func (m *Manager) notify(previous, current Session) {
	for _, l := range m.listeners {
		l(previous, current)
	}
}

var _ Store = (*Manager)(nil)
