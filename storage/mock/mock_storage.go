// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/nft-oauth/storage"
)

// MockFlowStore is a mock implementation of FlowStore for testing
type MockFlowStore struct {
	mu        sync.RWMutex
	authCodes map[string]*storage.AuthorizationCode

	SaveCodeFunc    func(ctx context.Context, code *storage.AuthorizationCode) error
	GetCodeFunc     func(ctx context.Context, code string) (*storage.AuthorizationCode, error)
	ConsumeCodeFunc func(ctx context.Context, code string) (*storage.AuthorizationCode, error)
	DeleteCodeFunc  func(ctx context.Context, code string) error
	CallCounts      map[string]int
}

// Compile-time interface check
var _ storage.FlowStore = (*MockFlowStore)(nil)

// NewMockFlowStore creates a new mock flow store
func NewMockFlowStore() *MockFlowStore {
	m := &MockFlowStore{
		authCodes:  make(map[string]*storage.AuthorizationCode),
		CallCounts: make(map[string]int),
	}

	// Set default implementations
	m.SaveCodeFunc = func(_ context.Context, code *storage.AuthorizationCode) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.authCodes[code.Code] = code
		return nil
	}

	m.GetCodeFunc = func(_ context.Context, code string) (*storage.AuthorizationCode, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		authCode, ok := m.authCodes[code]
		if !ok {
			return nil, storage.ErrCodeNotFound
		}
		codeCopy := *authCode
		return &codeCopy, nil
	}

	m.ConsumeCodeFunc = func(_ context.Context, code string) (*storage.AuthorizationCode, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		authCode, ok := m.authCodes[code]
		if !ok {
			return nil, storage.ErrCodeNotFound
		}
		delete(m.authCodes, code)
		if time.Now().After(authCode.ExpiresAt) {
			return nil, storage.ErrCodeExpired
		}
		return authCode, nil
	}

	m.DeleteCodeFunc = func(_ context.Context, code string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.authCodes, code)
		return nil
	}

	return m
}

// SaveAuthorizationCode saves an issued authorization code
func (m *MockFlowStore) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	m.countCall("SaveAuthorizationCode")
	return m.SaveCodeFunc(ctx, code)
}

// GetAuthorizationCode retrieves an authorization code without consuming it
func (m *MockFlowStore) GetAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	m.countCall("GetAuthorizationCode")
	return m.GetCodeFunc(ctx, code)
}

// AtomicConsumeAuthorizationCode atomically retrieves and deletes a code
func (m *MockFlowStore) AtomicConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	m.countCall("AtomicConsumeAuthorizationCode")
	return m.ConsumeCodeFunc(ctx, code)
}

// DeleteAuthorizationCode removes an authorization code
func (m *MockFlowStore) DeleteAuthorizationCode(ctx context.Context, code string) error {
	m.countCall("DeleteAuthorizationCode")
	return m.DeleteCodeFunc(ctx, code)
}

// ResetCallCounts resets all call counters
func (m *MockFlowStore) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}

func (m *MockFlowStore) countCall(method string) {
	m.mu.Lock()
	m.CallCounts[method]++
	m.mu.Unlock()
}

// MockClientStore is a mock implementation of ClientStore for testing
type MockClientStore struct {
	mu      sync.RWMutex
	clients map[string]*storage.Client

	SaveClientFunc     func(ctx context.Context, client *storage.Client) error
	GetClientFunc      func(ctx context.Context, clientID string) (*storage.Client, error)
	ValidateSecretFunc func(ctx context.Context, clientID, clientSecret string) error
	ListClientsFunc    func(ctx context.Context) ([]*storage.Client, error)
	CallCounts         map[string]int
}

// Compile-time interface check
var _ storage.ClientStore = (*MockClientStore)(nil)

// NewMockClientStore creates a new mock client store
func NewMockClientStore() *MockClientStore {
	m := &MockClientStore{
		clients:    make(map[string]*storage.Client),
		CallCounts: make(map[string]int),
	}

	// Set default implementations
	m.SaveClientFunc = func(_ context.Context, client *storage.Client) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clients[client.ClientID] = client
		return nil
	}

	m.GetClientFunc = func(_ context.Context, clientID string) (*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		client, ok := m.clients[clientID]
		if !ok {
			return nil, storage.ErrClientNotFound
		}
		return client, nil
	}

	m.ValidateSecretFunc = func(ctx context.Context, clientID, clientSecret string) error {
		client, err := m.GetClientFunc(ctx, clientID)
		if err != nil {
			return storage.ErrInvalidClientSecret
		}
		if client.ClientType == "public" {
			return nil
		}
		if bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)) != nil {
			return storage.ErrInvalidClientSecret
		}
		return nil
	}

	m.ListClientsFunc = func(_ context.Context) ([]*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		clients := make([]*storage.Client, 0, len(m.clients))
		for _, client := range m.clients {
			clients = append(clients, client)
		}
		return clients, nil
	}

	return m
}

// SaveClient saves a registered client
func (m *MockClientStore) SaveClient(ctx context.Context, client *storage.Client) error {
	m.countCall("SaveClient")
	return m.SaveClientFunc(ctx, client)
}

// GetClient retrieves a client by ID
func (m *MockClientStore) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	m.countCall("GetClient")
	return m.GetClientFunc(ctx, clientID)
}

// ValidateClientSecret validates a client's secret
func (m *MockClientStore) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	m.countCall("ValidateClientSecret")
	return m.ValidateSecretFunc(ctx, clientID, clientSecret)
}

// ListClients lists all registered clients
func (m *MockClientStore) ListClients(ctx context.Context) ([]*storage.Client, error) {
	m.countCall("ListClients")
	return m.ListClientsFunc(ctx)
}

// ResetCallCounts resets all call counters
func (m *MockClientStore) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}

func (m *MockClientStore) countCall(method string) {
	m.mu.Lock()
	m.CallCounts[method]++
	m.mu.Unlock()
}
