package auth_test

import (
	"context"
	"sync"
	"time"

	auth "github.com/Zarichney-Development/zarichney-api-sub000"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// MockPrincipalLookup implements auth.PrincipalLookup
type MockPrincipalLookup struct {
	mock.Mock
}

func (m *MockPrincipalLookup) FindByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*auth.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPrincipalLookup) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	args := m.Called(ctx, email)
	if p := args.Get(0); p != nil {
		return p.(*auth.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockCredentialVerifier implements auth.CredentialVerifier
type MockCredentialVerifier struct {
	mock.Mock
}

func (m *MockCredentialVerifier) CheckPassword(ctx context.Context, principalID uuid.UUID, password string) (bool, error) {
	args := m.Called(ctx, principalID, password)
	return args.Bool(0), args.Error(1)
}

// stubLookup is a map-backed PrincipalLookup for tests that exercise
// whole flows instead of single calls.
type stubLookup struct {
	byID    map[uuid.UUID]*auth.Principal
	byEmail map[string]*auth.Principal
}

func newStubLookup(principals ...*auth.Principal) *stubLookup {
	s := &stubLookup{
		byID:    map[uuid.UUID]*auth.Principal{},
		byEmail: map[string]*auth.Principal{},
	}
	for _, p := range principals {
		s.byID[p.ID] = p
		s.byEmail[auth.NormalizeEmail(p.Email)] = p
	}
	return s
}

func (s *stubLookup) FindByID(ctx context.Context, id uuid.UUID) (*auth.Principal, error) {
	return s.byID[id], nil
}

func (s *stubLookup) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	return s.byEmail[auth.NormalizeEmail(email)], nil
}

// stubVerifier accepts a single password for every principal.
type stubVerifier struct {
	password string
	err      error
}

func (s *stubVerifier) CheckPassword(ctx context.Context, principalID uuid.UUID, password string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return password == s.password, nil
}

// stubFeatureGate answers availability checks from a fixed map and
// records the keys it was asked about.
type stubFeatureGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubFeatureGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

// captureSink records every activity event it sees.
type captureSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *captureSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) byType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []auth.ActivityEvent
	for _, e := range c.events {
		if e.EventType == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
