package service

import (
	"context"
	"sync"
	"sync/atomic"

	"tradeconsole/internal/models"
)

// ============ Mock AuthRemote ============

type MockAuthRemote struct {
	access      string
	loginErr    error
	registerErr error

	loginCalls    int
	registerCalls int
}

func (m *MockAuthRemote) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	m.loginCalls++
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{Access: m.access, Refresh: "refresh"}, nil
}

func (m *MockAuthRemote) Register(ctx context.Context, username, email, password string) (*models.RegisterResponse, error) {
	m.registerCalls++
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &models.RegisterResponse{OK: true, ID: 1, Username: username}, nil
}

// ============ Mock SessionStore ============

type MockSessionStore struct {
	token    string
	setErr   error
	clearErr error
}

func (m *MockSessionStore) SetToken(token string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.token = token
	return nil
}

func (m *MockSessionStore) Clear() error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.token = ""
	return nil
}

func (m *MockSessionStore) CurrentToken() (string, bool) {
	return m.token, m.token != ""
}

// ============ Mock AccountRemote ============

type MockAccountRemote struct {
	keyInfo  models.Payload
	balances models.Payload
	orders   []models.Order

	keyInfoErr  error
	balancesErr error
	ordersErr   error

	keyInfoCalls  atomic.Int32
	balancesCalls atomic.Int32
	ordersCalls   atomic.Int32

	mu          sync.Mutex
	accountType string
	symbol      string
	category    string
}

func (m *MockAccountRemote) KeyInfo(ctx context.Context) (models.Payload, error) {
	m.keyInfoCalls.Add(1)
	if m.keyInfoErr != nil {
		return nil, m.keyInfoErr
	}
	return m.keyInfo, nil
}

func (m *MockAccountRemote) Balances(ctx context.Context, accountType string) (models.Payload, error) {
	m.balancesCalls.Add(1)
	m.mu.Lock()
	m.accountType = accountType
	m.mu.Unlock()
	if m.balancesErr != nil {
		return nil, m.balancesErr
	}
	return m.balances, nil
}

func (m *MockAccountRemote) OpenOrders(ctx context.Context, symbol, category string) ([]models.Order, error) {
	m.ordersCalls.Add(1)
	m.mu.Lock()
	m.symbol, m.category = symbol, category
	m.mu.Unlock()
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	return m.orders, nil
}

// ============ Mock FlowCloser ============

type MockFlow struct {
	closed int
}

func (m *MockFlow) Close() {
	m.closed++
}

// ============ Mock Cache (только Clear) ============

type MockCache struct {
	QueryCacheInterface
	cleared int
}

func (m *MockCache) Clear() {
	m.cleared++
}
