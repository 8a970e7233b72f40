// Package prefs persists one session's theme and favorites list on a Store.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
	"github.com/kjstillabower/cuaca/internal/store"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ParseTheme maps anything other than "dark" to Light.
func ParseTheme(s string) Theme {
	if Theme(s) == Dark {
		return Dark
	}
	return Light
}

func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Icon is the glyph shown on the theme toggle button.
func (t Theme) Icon() string {
	if t == Dark {
		return "☀️"
	}
	return "🌙"
}

// FavoritesVersion is the schema version written by SaveFavorites.
const FavoritesVersion = 1

const (
	themeKey     = "theme"
	favoritesKey = "favorites"
)

type favoritesDoc struct {
	Version   int               `json:"version"`
	Favorites []models.Favorite `json:"favorites"`
}

// Adapter reads and writes preferences for a single session id.
type Adapter struct {
	store  store.Store
	sid    string
	logger *zap.Logger
}

func NewAdapter(s store.Store, sessionID string, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: s, sid: sessionID, logger: logger}
}

func (a *Adapter) key(name string) string {
	return a.sid + ":" + name
}

// LoadTheme returns the persisted theme. Missing, unknown or unreadable values
// yield Light.
func (a *Adapter) LoadTheme(ctx context.Context) Theme {
	raw, ok, err := a.store.Get(ctx, a.key(themeKey))
	if err != nil {
		observability.StoreErrorsTotal.WithLabelValues("get").Inc()
		a.logger.Warn("load theme failed", observability.SessionField(a.sid), zap.Error(err))
		return Light
	}
	if !ok {
		return Light
	}
	return ParseTheme(raw)
}

func (a *Adapter) SaveTheme(ctx context.Context, t Theme) error {
	if err := a.store.Set(ctx, a.key(themeKey), string(t)); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// LoadFavorites returns the persisted list in insertion order. Both the
// versioned document and a bare JSON array are accepted; anything else reads
// as an empty list.
func (a *Adapter) LoadFavorites(ctx context.Context) []models.Favorite {
	raw, ok, err := a.store.Get(ctx, a.key(favoritesKey))
	if err != nil {
		observability.StoreErrorsTotal.WithLabelValues("get").Inc()
		a.logger.Warn("load favorites failed", observability.SessionField(a.sid), zap.Error(err))
		return []models.Favorite{}
	}
	if !ok || raw == "" {
		return []models.Favorite{}
	}

	favs, err := DecodeFavorites([]byte(raw))
	if err != nil {
		a.logger.Warn("discarding unreadable favorites", observability.SessionField(a.sid), zap.Error(err))
		return []models.Favorite{}
	}
	return favs
}

func (a *Adapter) SaveFavorites(ctx context.Context, favs []models.Favorite) error {
	raw, err := EncodeFavorites(favs)
	if err != nil {
		return err
	}
	if err := a.store.Set(ctx, a.key(favoritesKey), string(raw)); err != nil {
		observability.StoreErrorsTotal.WithLabelValues("set").Inc()
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}

func EncodeFavorites(favs []models.Favorite) ([]byte, error) {
	if favs == nil {
		favs = []models.Favorite{}
	}
	raw, err := json.Marshal(favoritesDoc{Version: FavoritesVersion, Favorites: favs})
	if err != nil {
		return nil, fmt.Errorf("encode favorites: %w", err)
	}
	return raw, nil
}

func DecodeFavorites(raw []byte) ([]models.Favorite, error) {
	var legacy []models.Favorite
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return nonNil(legacy), nil
	}

	var doc favoritesDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	if doc.Version != FavoritesVersion {
		return nil, fmt.Errorf("decode favorites: unsupported version %d", doc.Version)
	}
	return nonNil(doc.Favorites), nil
}

func nonNil(favs []models.Favorite) []models.Favorite {
	if favs == nil {
		return []models.Favorite{}
	}
	return favs
}
