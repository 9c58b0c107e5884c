package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// Record contract stub (authorization + certificates)
// ---------------------------------------------------------------------------

type stubUser struct {
	name   string
	secret string
	role   domain.Role
}

type stubLedger struct {
	mu          sync.Mutex
	users       map[domain.Identity]stubUser
	certs       map[string]*domain.CertificateRecord
	userErr     error // returned by User
	loginErr    error // returned by Login
	createErr   error // returned by Create
	loginCalls  int
	createCalls int
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		users: make(map[domain.Identity]stubUser),
		certs: make(map[string]*domain.CertificateRecord),
	}
}

func (l *stubLedger) User(_ context.Context, identity domain.Identity) (domain.AuthorizationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.userErr != nil {
		return domain.AuthorizationRecord{}, l.userErr
	}
	u, ok := l.users[identity]
	if !ok {
		return domain.AuthorizationRecord{Identity: identity}, nil
	}
	return domain.AuthorizationRecord{Identity: identity, DisplayName: u.name, Role: u.role, Exists: true}, nil
}

func (l *stubLedger) Login(_ context.Context, from domain.Identity, secret string) (bool, domain.Role, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loginCalls++
	if l.loginErr != nil {
		return false, 0, l.loginErr
	}
	u, ok := l.users[from]
	if !ok || u.secret != secret {
		return false, 0, nil
	}
	return true, u.role, nil
}

func (l *stubLedger) RegisterUser(_ context.Context, identity domain.Identity, name, secret string, role domain.Role) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[identity]; ok {
		return domain.ErrUserExists
	}
	l.users[identity] = stubUser{name: name, secret: secret, role: role}
	return nil
}

func (l *stubLedger) Create(_ context.Context, rec *domain.CertificateRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createCalls++
	if l.createErr != nil {
		return l.createErr
	}
	if _, ok := l.certs[rec.CertificateID]; ok {
		return domain.ErrDuplicateCertificate
	}
	clone := *rec
	l.certs[rec.CertificateID] = &clone
	return nil
}

func (l *stubLedger) FindByID(_ context.Context, id string) (*domain.CertificateRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.certs[id]
	if !ok {
		return nil, domain.ErrCertificateNotFound
	}
	clone := *rec
	return &clone, nil
}

// ---------------------------------------------------------------------------
// Blob store stub
// ---------------------------------------------------------------------------

type stubBlobStore struct {
	mu       sync.Mutex
	blobs    map[domain.BlobReference][]byte
	putErr   error
	getErr   error
	putCalls int
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{blobs: make(map[domain.BlobReference][]byte)}
}

func (s *stubBlobStore) Put(_ context.Context, data []byte) (domain.BlobReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.putErr != nil {
		return "", s.putErr
	}
	ref, err := domain.ComputeReference(data)
	if err != nil {
		return "", err
	}
	if _, ok := s.blobs[ref]; !ok {
		s.blobs[ref] = append([]byte(nil), data...)
	}
	return ref, nil
}

func (s *stubBlobStore) Get(_ context.Context, ref domain.BlobReference) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.blobs[ref]
	if !ok {
		return nil, domain.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *stubBlobStore) Exists(_ context.Context, ref domain.BlobReference) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[ref]
	return ok, nil
}

// ---------------------------------------------------------------------------
// Credential provider stub
// ---------------------------------------------------------------------------

type stubProvider struct {
	mu          sync.Mutex
	accounts    []string
	chainID     string
	known       map[string]bool
	chainErr    error
	switchErr   error // forced error on SwitchChain (overrides known)
	addErr      error
	accountsErr error
	switches    []string
	added       []ports.ChainDescriptor
	subscribers map[int]func(ports.ProviderEvent)
	nextSub     int
}

func newStubProvider(chainID string, accounts ...string) *stubProvider {
	return &stubProvider{
		accounts:    accounts,
		chainID:     chainID,
		known:       map[string]bool{chainID: true},
		subscribers: make(map[int]func(ports.ProviderEvent)),
	}
}

func (p *stubProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return p.Accounts(ctx)
}

func (p *stubProvider) Accounts(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return append([]string(nil), p.accounts...), nil
}

func (p *stubProvider) ChainID(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainErr != nil {
		return "", p.chainErr
	}
	return p.chainID, nil
}

func (p *stubProvider) SwitchChain(_ context.Context, chainID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switches = append(p.switches, chainID)
	if p.switchErr != nil {
		return p.switchErr
	}
	if !p.known[chainID] {
		return domain.ErrUnrecognizedChain
	}
	p.chainID = chainID
	return nil
}

func (p *stubProvider) AddChain(_ context.Context, chain ports.ChainDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, chain)
	if p.addErr != nil {
		return p.addErr
	}
	p.known[chain.ChainID] = true
	return nil
}

func (p *stubProvider) Subscribe(fn func(ports.ProviderEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *stubProvider) emit(ev ports.ProviderEvent) {
	p.mu.Lock()
	subs := make([]func(ports.ProviderEvent), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// ---------------------------------------------------------------------------
// Session store stub
// ---------------------------------------------------------------------------

type stubSessionStore struct {
	mu      sync.Mutex
	session *domain.Session
	saveErr error
	cleared int
}

func (s *stubSessionStore) Load(context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	clone := *s.session
	return &clone, nil
}

func (s *stubSessionStore) Save(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.session = &sess
	return nil
}

func (s *stubSessionStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.cleared++
	return nil
}

var errBackendDown = errors.New("backend down")

// ---------------------------------------------------------------------------
// Metrics stub
// ---------------------------------------------------------------------------

type recordingMetrics struct {
	mu         sync.Mutex
	failed     []domain.Stage
	registered int
	stored     []int
	retrieved  []string
	logins     []string
}

func (m *recordingMetrics) RegisterFailed(stage domain.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, stage)
}

func (m *recordingMetrics) Registered(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered++
}

func (m *recordingMetrics) BlobStored(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, n)
}

func (m *recordingMetrics) Retrieved(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieved = append(m.retrieved, result)
}

func (m *recordingMetrics) LoginAttempted(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, result)
}
