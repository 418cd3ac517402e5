package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/storage"
)

// Provider owns the guest session identifier that scopes an anonymous cart.
type Provider struct {
	mu     sync.Mutex
	store  storage.Storage
	logger *slog.Logger
	newID  func() string
}

// NewProvider creates a session provider backed by store.
func NewProvider(store storage.Storage, logger *slog.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
}

// GetOrCreate returns the persisted session ID, creating and persisting a
// new random one if none exists. Repeated calls return the same ID.
func (p *Provider) GetOrCreate(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok, err := p.store.Get(ctx, storage.KeySessionID)
	if err != nil {
		return "", fmt.Errorf("read session id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = p.newID()
	if err := p.store.Set(ctx, storage.KeySessionID, id); err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}

	p.logger.DebugContext(ctx, "guest session created", slog.String("session_id", id))
	return id, nil
}

// Get returns the persisted session ID without creating one. The empty
// string means there is no guest session.
func (p *Provider) Get(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, _, err := p.store.Get(ctx, storage.KeySessionID)
	if err != nil {
		return "", fmt.Errorf("read session id: %w", err)
	}
	return id, nil
}

// Clear deletes the session ID. A cleared ID is never handed out again.
func (p *Provider) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(ctx, storage.KeySessionID); err != nil {
		return fmt.Errorf("clear session id: %w", err)
	}
	return nil
}
