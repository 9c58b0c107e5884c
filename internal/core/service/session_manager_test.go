package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

func TestSessionManager_EstablishPersists(t *testing.T) {
	store := &stubSessionStore{}
	m := NewSessionManager(store, nil, discardLogger)

	if err := m.Establish(context.Background(), "0xaaa", domain.RoleTeacher); err != nil {
		t.Fatal(err)
	}
	s, ok := m.Current()
	if !ok || s.Identity != "0xaaa" || s.Role != domain.RoleTeacher || !s.Authorized {
		t.Fatalf("unexpected session: %+v %v", s, ok)
	}
	if store.session == nil || store.session.Role != domain.RoleTeacher {
		t.Fatalf("session was not persisted: %+v", store.session)
	}
}

func TestSessionManager_InvalidatedOnProviderEvents(t *testing.T) {
	kinds := []ports.ProviderEventKind{ports.EventAccountsChanged, ports.EventChainChanged, ports.EventDisconnect}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			store := &stubSessionStore{}
			p := newStubProvider("0x7a69", "0xaaa")
			m := NewSessionManager(store, p, discardLogger)

			if err := m.Establish(context.Background(), "0xaaa", domain.RoleStudent); err != nil {
				t.Fatal(err)
			}
			p.emit(ports.ProviderEvent{Kind: kind})

			if _, ok := m.Current(); ok {
				t.Fatal("session must be invalidated")
			}
			m.Close()
			store.mu.Lock()
			defer store.mu.Unlock()
			if store.session != nil || store.cleared != 1 {
				t.Errorf("persisted session must be cleared: %+v cleared=%d", store.session, store.cleared)
			}
		})
	}
}

func TestSessionManager_CloseUnsubscribes(t *testing.T) {
	store := &stubSessionStore{}
	p := newStubProvider("0x7a69", "0xaaa")
	m := NewSessionManager(store, p, discardLogger)
	_ = m.Establish(context.Background(), "0xaaa", domain.RoleStudent)

	m.Close()
	p.emit(ports.ProviderEvent{Kind: ports.EventDisconnect})

	if _, ok := m.Current(); !ok {
		t.Fatal("closed manager must not react to events")
	}
}

func TestSessionManager_Restore(t *testing.T) {
	store := &stubSessionStore{session: &domain.Session{Identity: "0xbbb", Role: domain.RoleStudent, Authorized: true}}
	m := NewSessionManager(store, nil, discardLogger)

	s, err := m.Restore(context.Background())
	if err != nil || s == nil || s.Identity != "0xbbb" {
		t.Fatalf("unexpected restore result: %+v %v", s, err)
	}
	if _, ok := m.Current(); !ok {
		t.Error("restored session should be current")
	}
}

type blockingSessionStore struct {
	stubSessionStore
	release chan struct{}
}

func (s *blockingSessionStore) Clear(ctx context.Context) error {
	<-s.release
	return s.stubSessionStore.Clear(ctx)
}

func TestSessionManager_ProviderEventDoesNotWaitForStore(t *testing.T) {
	store := &blockingSessionStore{release: make(chan struct{})}
	p := newStubProvider("0x7a69", "0xaaa")
	m := NewSessionManager(store, p, discardLogger)
	if err := m.Establish(context.Background(), "0xaaa", domain.RoleTeacher); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		p.emit(ports.ProviderEvent{Kind: ports.EventAccountsChanged})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event callback blocked on the session store")
	}
	if _, ok := m.Current(); ok {
		t.Fatal("in-memory session must be dropped before the store is cleared")
	}

	close(store.release)
	m.Close()
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.session != nil || store.cleared != 1 {
		t.Errorf("persisted session must be cleared: %+v cleared=%d", store.session, store.cleared)
	}
}

func TestSessionManager_LateClearKeepsNewerLogin(t *testing.T) {
	store := &blockingSessionStore{release: make(chan struct{})}
	p := newStubProvider("0x7a69", "0xaaa")
	m := NewSessionManager(store, p, discardLogger)
	if err := m.Establish(context.Background(), "0xaaa", domain.RoleStudent); err != nil {
		t.Fatal(err)
	}

	// The background clear blocks in the store until release is closed.
	p.emit(ports.ProviderEvent{Kind: ports.EventAccountsChanged})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Establish(context.Background(), "0xbbb", domain.RoleTeacher); err != nil {
			t.Error(err)
		}
	}()
	close(store.release)
	wg.Wait()
	m.Close()

	s, ok := m.Current()
	if !ok || s.Identity != "0xbbb" {
		t.Fatalf("newer login must survive: %+v %v", s, ok)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.session == nil || store.session.Identity != "0xbbb" {
		t.Fatalf("newer login must stay persisted: %+v", store.session)
	}
}
