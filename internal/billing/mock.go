package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is an in-memory CheckoutProvider for tests and local runs
// without a Stripe key.
type MockProvider struct {
	// CreateSessionFunc allows customizing session creation behavior
	CreateSessionFunc func(ctx context.Context, params CreateSessionParams) (*Session, error)

	// ExpireSessionFunc allows customizing expiry behavior
	ExpireSessionFunc func(ctx context.Context, sessionID string) (*Session, error)

	// Sessions stores created sessions for retrieval
	Sessions map[string]*Session

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

// NewMockProvider creates a new mock checkout provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]*Session),
		CallLog:  []string{},
	}
}

// CreateSession creates a mock open session.
func (m *MockProvider) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateSession(%s)", params.OrderID))
	m.mu.Unlock()

	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, params)
	}
	if len(params.Items) == 0 {
		return nil, ErrNoLineItems
	}

	var total int64
	for _, item := range params.Items {
		total += item.AmountCents * item.Quantity
	}
	id := "cs_test_" + uuid.NewString()
	s := &Session{
		ID:            id,
		URL:           "https://checkout.example/pay/" + id,
		Status:        "open",
		PaymentStatus: "unpaid",
		AmountTotal:   total,
		Currency:      params.Currency,
		ExpiresAt:     time.Now().Add(24 * time.Hour).UTC(),
	}

	m.mu.Lock()
	m.Sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// GetSession returns a stored session.
func (m *MockProvider) GetSession(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetSession(%s)", sessionID))

	s, ok := m.Sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

// ExpireSession marks an open session expired.
func (m *MockProvider) ExpireSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("ExpireSession(%s)", sessionID))
	m.mu.Unlock()

	if m.ExpireSessionFunc != nil {
		return m.ExpireSessionFunc(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.Open() {
		return nil, &ProviderError{Op: "expire session", Message: "session is " + s.Status}
	}
	s.Status = "expired"
	copied := *s
	return &copied, nil
}
