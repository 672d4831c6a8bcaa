// Package memory provides an in-process simulation of the NFT ledger
// contract. It is suitable for development, testing, and single-instance
// deployments where a real chain is not available.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokengate/nft-oauth/instrumentation"
	"github.com/tokengate/nft-oauth/ledger"
)

// MintEvent describes a committed mint, mirroring the event the contract
// emits on-chain. TxHash is a synthetic transaction identifier.
type MintEvent struct {
	TokenID  uint64
	Subject  string
	ClientID string
	TxHash   string
}

// Ledger is an in-memory implementation of ledger.Gateway. It serializes
// state-mutating calls the way the contract runtime would and assigns token
// ids monotonically starting at 1.
type Ledger struct {
	mu sync.Mutex

	operator   string
	nextID     uint64
	records    map[uint64]*ledger.TokenRecord
	userTokens map[string][]uint64 // subject -> token ids, insertion order
	clients    map[string]string   // client id -> registered address

	mintListener func(MintEvent)

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counter for metrics (lock-free access during collection)
	recordsCountAtomic atomic.Int64

	logger *slog.Logger
}

// Compile-time interface check
var _ ledger.Gateway = (*Ledger)(nil)

// New creates a new in-memory ledger with the given operator identity.
// The operator may revoke any record, matching the contract owner's
// authority on-chain.
func New(operator string) *Ledger {
	return &Ledger{
		operator:   operator,
		nextID:     1,
		records:    make(map[uint64]*ledger.TokenRecord),
		userTokens: make(map[string][]uint64),
		clients:    make(map[string]string),
		logger:     slog.Default(),
	}
}

// SetLogger sets a custom logger
func (l *Ledger) SetLogger(logger *slog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the ledger
func (l *Ledger) SetInstrumentation(inst *instrumentation.Instrumentation) {
	l.mu.Lock()
	l.instrumentation = inst
	if inst != nil {
		l.tracer = inst.Tracer("ledger")
	}
	l.recordsCountAtomic.Store(int64(len(l.records)))
	l.mu.Unlock()

	if inst != nil {
		err := inst.RegisterLedgerSizeCallback(func() int64 {
			return l.recordsCountAtomic.Load()
		})
		if err != nil {
			l.logger.Warn("Failed to register ledger size callback", "error", err)
		}
	}
}

// SetMintListener registers a callback invoked after every committed mint,
// mirroring the contract's mint event. The callback runs outside the
// ledger's lock.
func (l *Ledger) SetMintListener(fn func(MintEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mintListener = fn
}

// RegisterClient registers a client id with its operator-controlled address.
// On the real contract this is pre-populated by the deployer; the simulation
// exposes it so tests and examples can seed clients.
func (l *Ledger) RegisterClient(clientID, address string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients[clientID] = address
	l.logger.Debug("Registered ledger client", "client_id", clientID)
}

// Mint commits a new token record and returns its assigned id
func (l *Ledger) Mint(ctx context.Context, req ledger.MintRequest) (uint64, error) {
	ctx, span := l.startSpan(ctx, "mint")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		l.recordOperation(ctx, span, "mint", err, startTime)
	}()

	l.mu.Lock()

	if _, ok := l.clients[req.ClientID]; !ok {
		l.mu.Unlock()
		err = fmt.Errorf("%w: %s", ledger.ErrClientUnregistered, req.ClientID)
		return 0, err
	}
	if !req.ExpiresAt.After(time.Now()) {
		l.mu.Unlock()
		err = ledger.ErrInvalidExpiry
		return 0, err
	}

	tokenID := l.nextID
	l.nextID++

	// The contract assigns a metadata URI when the caller supplies none.
	if req.MetadataURI == "" {
		req.MetadataURI = "ipfs://" + uuid.NewString()
	}

	record := &ledger.TokenRecord{
		TokenID:     tokenID,
		Subject:     req.Subject,
		ClientID:    req.ClientID,
		Scope:       req.Scope,
		ExpiresAt:   req.ExpiresAt,
		Revoked:     false,
		MetadataURI: req.MetadataURI,
	}
	l.records[tokenID] = record
	l.userTokens[req.Subject] = append(l.userTokens[req.Subject], tokenID)
	l.recordsCountAtomic.Add(1)

	listener := l.mintListener
	l.mu.Unlock()

	event := MintEvent{
		TokenID:  tokenID,
		Subject:  req.Subject,
		ClientID: req.ClientID,
		TxHash:   newTxHash(),
	}
	if listener != nil {
		listener(event)
	}

	l.logger.Info("Minted token record",
		"token_id", tokenID,
		"client_id", req.ClientID,
		"tx_hash", event.TxHash,
		"expires_at", req.ExpiresAt)

	return tokenID, nil
}

// IsValid reports the live validity predicate for a token id
func (l *Ledger) IsValid(ctx context.Context, tokenID uint64) (bool, error) {
	ctx, span := l.startSpan(ctx, "is_valid")
	defer span.End()

	startTime := time.Now()
	defer func() {
		l.recordOperation(ctx, span, "is_valid", nil, startTime)
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[tokenID]
	if !ok {
		// Never-minted ids are invalid, not an error, matching the
		// contract's view function.
		return false, nil
	}
	return record.Valid(time.Now()), nil
}

// Record fetches the token record for an id
func (l *Ledger) Record(ctx context.Context, tokenID uint64) (*ledger.TokenRecord, error) {
	ctx, span := l.startSpan(ctx, "get_record")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		l.recordOperation(ctx, span, "get_record", err, startTime)
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[tokenID]
	if !ok {
		err = fmt.Errorf("%w: token %d", ledger.ErrNotFound, tokenID)
		return nil, err
	}

	// Return a copy to keep the stored record immutable to callers
	recordCopy := *record
	return &recordCopy, nil
}

// Revoke marks a record revoked. Idempotent: revoking an already-revoked
// record succeeds without changes, matching the contract.
func (l *Ledger) Revoke(ctx context.Context, tokenID uint64, requester string) error {
	ctx, span := l.startSpan(ctx, "revoke")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		l.recordOperation(ctx, span, "revoke", err, startTime)
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[tokenID]
	if !ok {
		err = fmt.Errorf("%w: token %d", ledger.ErrNotFound, tokenID)
		return err
	}

	if requester != record.Subject && requester != l.operator {
		err = fmt.Errorf("%w: token %d", ledger.ErrUnauthorized, tokenID)
		return err
	}

	if record.Revoked {
		l.logger.Debug("Token already revoked", "token_id", tokenID)
		return nil
	}

	record.Revoked = true
	l.logger.Info("Revoked token record", "token_id", tokenID)
	return nil
}

// ListUserTokens returns all token ids ever minted for a subject in
// insertion order, including revoked and expired ones.
func (l *Ledger) ListUserTokens(ctx context.Context, subject string) ([]uint64, error) {
	ctx, span := l.startSpan(ctx, "list_user_tokens")
	defer span.End()

	startTime := time.Now()
	defer func() {
		l.recordOperation(ctx, span, "list_user_tokens", nil, startTime)
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.userTokens[subject]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

// HealthCheck always succeeds for the in-process simulation
func (l *Ledger) HealthCheck(_ context.Context) error {
	return nil
}

// newTxHash generates a synthetic transaction identifier for mint events
func newTxHash() string {
	return "0x" + uuid.NewString()
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startSpan starts a new span for a ledger operation
func (l *Ledger) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if l.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := l.tracer.Start(ctx, fmt.Sprintf("ledger.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordOperation records metrics for a ledger operation and sets span status
func (l *Ledger) recordOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if l.instrumentation == nil {
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

	l.instrumentation.Metrics().RecordLedgerOperation(ctx, operation, result, durationMs)
}
