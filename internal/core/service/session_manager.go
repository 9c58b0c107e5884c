package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

const sessionClearTimeout = 2 * time.Second

// SessionManager holds the advisory client session. It is a UI pre-gate
// only: nothing in the core authorizes from it. Any account, chain or
// disconnect notification from the provider drops the session.
type SessionManager struct {
	store  ports.SessionStore
	logger zerolog.Logger

	mu      sync.RWMutex
	current *domain.Session
	// generation increases on every Establish so a late background clear
	// never removes a session saved after the event that triggered it.
	generation uint64

	storeMu sync.Mutex
	pending sync.WaitGroup

	closeOnce   sync.Once
	unsubscribe func()
}

// NewSessionManager subscribes to provider notifications. Call Close to
// detach.
func NewSessionManager(store ports.SessionStore, provider ports.CredentialProvider, logger zerolog.Logger) *SessionManager {
	m := &SessionManager{store: store, logger: logger}
	if provider != nil {
		m.unsubscribe = provider.Subscribe(m.onProviderEvent)
	}
	return m
}

// Restore loads a previously persisted session into memory.
func (m *SessionManager) Restore(ctx context.Context) (*domain.Session, error) {
	s, err := m.store.Load(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	clone := *s
	return &clone, nil
}

// Establish records a successful login in memory and in the store.
func (m *SessionManager) Establish(ctx context.Context, identity domain.Identity, role domain.Role) error {
	s := domain.Session{Identity: identity, Role: role, Authorized: true}
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	m.current = &s
	m.generation++
	m.mu.Unlock()
	return m.store.Save(ctx, s)
}

// Current returns the cached session, if any.
func (m *SessionManager) Current() (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return domain.Session{}, false
	}
	return *m.current, true
}

// Invalidate drops the session from memory and from the store.
func (m *SessionManager) Invalidate(ctx context.Context) error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return m.store.Clear(ctx)
}

// Close detaches from the provider and waits for pending store clears.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
	m.pending.Wait()
}

// onProviderEvent runs on the provider's notification goroutine, so only the
// in-memory reset happens inline.
func (m *SessionManager) onProviderEvent(ev ports.ProviderEvent) {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	gen := m.generation
	m.mu.Unlock()

	if !had {
		return
	}
	m.logger.Info().Str("event", string(ev.Kind)).Msg("session invalidated")

	m.pending.Add(1)
	go m.clearPersisted(gen)
}

func (m *SessionManager) clearPersisted(gen uint64) {
	defer m.pending.Done()

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.RLock()
	stale := m.generation != gen
	m.mu.RUnlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sessionClearTimeout)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear persisted session")
	}
}
