// Package mock provides a mock implementation of the ledger gateway for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tokengate/nft-oauth/ledger"
)

// MockGateway is a mock implementation of ledger.Gateway for testing
type MockGateway struct {
	mu         sync.RWMutex
	nextID     uint64
	records    map[uint64]*ledger.TokenRecord
	userTokens map[string][]uint64

	MintFunc           func(ctx context.Context, req ledger.MintRequest) (uint64, error)
	IsValidFunc        func(ctx context.Context, tokenID uint64) (bool, error)
	RecordFunc         func(ctx context.Context, tokenID uint64) (*ledger.TokenRecord, error)
	RevokeFunc         func(ctx context.Context, tokenID uint64, requester string) error
	ListUserTokensFunc func(ctx context.Context, subject string) ([]uint64, error)
	HealthCheckFunc    func(ctx context.Context) error
	CallCounts         map[string]int
}

// Compile-time interface check
var _ ledger.Gateway = (*MockGateway)(nil)

// NewMockGateway creates a new mock gateway with working default behavior
func NewMockGateway() *MockGateway {
	m := &MockGateway{
		nextID:     1,
		records:    make(map[uint64]*ledger.TokenRecord),
		userTokens: make(map[string][]uint64),
		CallCounts: make(map[string]int),
	}

	// Set default implementations
	m.MintFunc = func(_ context.Context, req ledger.MintRequest) (uint64, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		id := m.nextID
		m.nextID++
		m.records[id] = &ledger.TokenRecord{
			TokenID:     id,
			Subject:     req.Subject,
			ClientID:    req.ClientID,
			Scope:       req.Scope,
			ExpiresAt:   req.ExpiresAt,
			MetadataURI: req.MetadataURI,
		}
		m.userTokens[req.Subject] = append(m.userTokens[req.Subject], id)
		return id, nil
	}

	m.IsValidFunc = func(_ context.Context, tokenID uint64) (bool, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		record, ok := m.records[tokenID]
		if !ok {
			return false, nil
		}
		return record.Valid(time.Now()), nil
	}

	m.RecordFunc = func(_ context.Context, tokenID uint64) (*ledger.TokenRecord, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		record, ok := m.records[tokenID]
		if !ok {
			return nil, fmt.Errorf("%w: token %d", ledger.ErrNotFound, tokenID)
		}
		recordCopy := *record
		return &recordCopy, nil
	}

	m.RevokeFunc = func(_ context.Context, tokenID uint64, _ string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.records[tokenID]
		if !ok {
			return fmt.Errorf("%w: token %d", ledger.ErrNotFound, tokenID)
		}
		record.Revoked = true
		return nil
	}

	m.ListUserTokensFunc = func(_ context.Context, subject string) ([]uint64, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		ids := m.userTokens[subject]
		out := make([]uint64, len(ids))
		copy(out, ids)
		return out, nil
	}

	m.HealthCheckFunc = func(_ context.Context) error {
		return nil
	}

	return m
}

// Mint commits a new token record
func (m *MockGateway) Mint(ctx context.Context, req ledger.MintRequest) (uint64, error) {
	m.countCall("Mint")
	return m.MintFunc(ctx, req)
}

// IsValid reports the live validity predicate for a token id
func (m *MockGateway) IsValid(ctx context.Context, tokenID uint64) (bool, error) {
	m.countCall("IsValid")
	return m.IsValidFunc(ctx, tokenID)
}

// Record fetches the token record for an id
func (m *MockGateway) Record(ctx context.Context, tokenID uint64) (*ledger.TokenRecord, error) {
	m.countCall("Record")
	return m.RecordFunc(ctx, tokenID)
}

// Revoke marks a record revoked
func (m *MockGateway) Revoke(ctx context.Context, tokenID uint64, requester string) error {
	m.countCall("Revoke")
	return m.RevokeFunc(ctx, tokenID, requester)
}

// ListUserTokens returns all token ids minted for a subject
func (m *MockGateway) ListUserTokens(ctx context.Context, subject string) ([]uint64, error) {
	m.countCall("ListUserTokens")
	return m.ListUserTokensFunc(ctx, subject)
}

// HealthCheck reports gateway availability
func (m *MockGateway) HealthCheck(ctx context.Context) error {
	m.countCall("HealthCheck")
	return m.HealthCheckFunc(ctx)
}

// ResetCallCounts resets all call counters
func (m *MockGateway) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}

// Calls returns the number of recorded calls for a method name
func (m *MockGateway) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

func (m *MockGateway) countCall(method string) {
	m.mu.Lock()
	m.CallCounts[method]++
	m.mu.Unlock()
}
