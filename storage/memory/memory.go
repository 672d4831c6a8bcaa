package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/nft-oauth/instrumentation"
	"github.com/tokengate/nft-oauth/internal/util"
	"github.com/tokengate/nft-oauth/security"
	"github.com/tokengate/nft-oauth/storage"
)

// codeLogLength is the number of characters to include when logging
// authorization codes. Enough uniqueness for debugging without exposing
// the full credential.
const codeLogLength = 8

// Store is an in-memory implementation of the storage interfaces.
// It implements FlowStore and ClientStore.
type Store struct {
	mu sync.RWMutex

	// Flow storage
	authCodes map[string]*storage.AuthorizationCode

	// Client storage
	clients map[string]*storage.Client

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Counters read by metric callbacks without taking the mutex
	codesCountAtomic   atomic.Int64
	clientsCountAtomic atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	logger          *slog.Logger
}

var (
	_ storage.FlowStore   = (*Store)(nil)
	_ storage.ClientStore = (*Store)(nil)
)

// New creates a new in-memory store with default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		authCodes:       make(map[string]*storage.AuthorizationCode),
		clients:         make(map[string]*storage.Client),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}

	// Seed the counters so gauges start at the current sizes
	s.codesCountAtomic.Store(int64(len(s.authCodes)))
	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.codesCountAtomic.Load() },
			func() int64 { return s.clientsCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop gracefully stops the cleanup goroutine
func (s *Store) Stop() {
	close(s.stopCleanup)
}

// ============================================================
// FlowStore Implementation
// ============================================================

// SaveAuthorizationCode saves an issued authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authCodes[code.Code]; !exists {
		s.codesCountAtomic.Add(1)
	}
	s.authCodes[code.Code] = code
	s.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code.Code, codeLogLength),
		"client_id", code.ClientID)
	return nil
}

// GetAuthorizationCode retrieves an authorization code without consuming it.
// Code exchange must go through AtomicConsumeAuthorizationCode.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrCodeNotFound
	}

	if security.IsTokenExpired(authCode.ExpiresAt) {
		return nil, fmt.Errorf("%w: authorization code expired", storage.ErrCodeExpired)
	}

	// Callers get a copy, not the stored value
	codeCopy := *authCode
	return &codeCopy, nil
}

// AtomicConsumeAuthorizationCode atomically retrieves and deletes an
// authorization code. Only ONE concurrent request can succeed; all others
// receive ErrCodeNotFound. Expired codes are removed and reported as
// ErrCodeExpired.
func (s *Store) AtomicConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	ctx, span := s.startStorageSpan(ctx, "consume_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "consume_authorization_code", err, startTime)
	}()

	// Write lock for the whole get-and-delete
	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		err = storage.ErrCodeNotFound
		return nil, err
	}

	// Consume regardless of outcome: an expired code is removed too
	delete(s.authCodes, code)
	s.codesCountAtomic.Add(-1)

	if security.IsTokenExpired(authCode.ExpiresAt) {
		err = fmt.Errorf("%w: authorization code expired", storage.ErrCodeExpired)
		return nil, err
	}

	s.logger.Debug("Consumed authorization code",
		"code_prefix", util.SafeTruncate(code, codeLogLength),
		"client_id", authCode.ClientID)

	return authCode, nil
}

// DeleteAuthorizationCode removes an authorization code
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authCodes[code]; exists {
		s.codesCountAtomic.Add(-1)
	}
	delete(s.authCodes, code)
	s.logger.Debug("Deleted authorization code")
	return nil
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient saves a registered client
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		err = fmt.Errorf("invalid client")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ClientID]; !exists {
		s.clientsCountAtomic.Add(1)
	}
	s.clients[client.ClientID] = client
	s.logger.Info("Saved client", "client_id", client.ClientID, "client_name", client.ClientName)
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
		return nil, err
	}

	return client, nil
}

// ValidateClientSecret checks a client's secret against its stored bcrypt
// hash. A bcrypt comparison runs on every call, including for unknown
// clients, so response timing does not reveal whether a client exists.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	// bcrypt hash of "test", compared against when there is no real hash
	dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	client, err := s.GetClient(ctx, clientID)

	hashToCompare := dummyHash
	isPublicClient := false

	if err == nil {
		if client.ClientType == "public" {
			isPublicClient = true
		} else if client.ClientSecretHash != "" {
			hashToCompare = client.ClientSecretHash
		}
	}

	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

	// Public clients have no secret to check
	if isPublicClient && err == nil {
		return nil
	}

	if err != nil || bcryptErr != nil {
		return storage.ErrInvalidClientSecret
	}

	return nil
}

// ListClients lists all registered clients
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	return clients, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0

	for code, authCode := range s.authCodes {
		if security.IsTokenExpired(authCode.ExpiresAt) {
			delete(s.authCodes, code)
			s.codesCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired authorization codes", "count", cleaned)
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan opens a tracing span for one store operation. Without
// instrumentation it returns the span already on the context.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation emits the operation metric and marks the span status.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
