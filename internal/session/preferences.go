package session

import (
	"context"
	"fmt"

	"github.com/utafrali/storefront/internal/storage"
)

// DefaultLanguage is used when no language has been chosen.
const DefaultLanguage = "en"

// Preferences persists UI preferences that travel with the session.
type Preferences struct {
	store storage.Storage
}

// NewPreferences creates a preferences accessor backed by store.
func NewPreferences(store storage.Storage) *Preferences {
	return &Preferences{store: store}
}

// Language returns the selected UI language, or DefaultLanguage.
func (p *Preferences) Language(ctx context.Context) string {
	lang, ok, err := p.store.Get(ctx, storage.KeyLanguage)
	if err != nil || !ok || lang == "" {
		return DefaultLanguage
	}
	return lang
}

// SetLanguage persists the selected UI language.
func (p *Preferences) SetLanguage(ctx context.Context, lang string) error {
	if lang == "" {
		return p.store.Delete(ctx, storage.KeyLanguage)
	}
	if err := p.store.Set(ctx, storage.KeyLanguage, lang); err != nil {
		return fmt.Errorf("persist language: %w", err)
	}
	return nil
}
