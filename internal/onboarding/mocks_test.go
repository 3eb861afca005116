package onboarding

import (
	"context"
	"sync"

	"tradeconsole/internal/models"
)

// MockRemote - мок удаленного сервиса с подменяемыми функциями
type MockRemote struct {
	mu sync.Mutex

	OnboardingStateFunc func(ctx context.Context) (*models.OnboardingState, error)
	TestCredentialsFunc func(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialTestResult, error)
	SaveCredentialsFunc func(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialSaveResult, error)

	stateCalls  int
	testCalls   int
	saveCalls   int
	lastTestnet bool
}

func (m *MockRemote) OnboardingState(ctx context.Context) (*models.OnboardingState, error) {
	m.mu.Lock()
	m.stateCalls++
	m.mu.Unlock()
	if m.OnboardingStateFunc != nil {
		return m.OnboardingStateFunc(ctx)
	}
	return &models.OnboardingState{}, nil
}

func (m *MockRemote) TestCredentials(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialTestResult, error) {
	m.mu.Lock()
	m.testCalls++
	m.lastTestnet = isTestnet
	m.mu.Unlock()
	if m.TestCredentialsFunc != nil {
		return m.TestCredentialsFunc(ctx, apiKey, apiSecret, isTestnet)
	}
	return &models.CredentialTestResult{OK: true}, nil
}

func (m *MockRemote) SaveCredentials(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialSaveResult, error) {
	m.mu.Lock()
	m.saveCalls++
	m.lastTestnet = isTestnet
	m.mu.Unlock()
	if m.SaveCredentialsFunc != nil {
		return m.SaveCredentialsFunc(ctx, apiKey, apiSecret, isTestnet)
	}
	return &models.CredentialSaveResult{OK: true}, nil
}

func (m *MockRemote) calls() (state, test, save int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateCalls, m.testCalls, m.saveCalls
}
