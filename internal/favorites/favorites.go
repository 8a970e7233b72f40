// Package favorites keeps a session's ordered list of saved cities.
package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/kjstillabower/cuaca/internal/models"
	"github.com/kjstillabower/cuaca/internal/observability"
)

var (
	ErrNoActiveCity = errors.New("no active city")
	ErrDuplicate    = errors.New("city already in favorites")
)

// Persister stores the full list after every mutation.
type Persister interface {
	SaveFavorites(ctx context.Context, favs []models.Favorite) error
}

// Manager is not safe for concurrent use; the owning controller serialises
// access.
type Manager struct {
	favs    []models.Favorite
	persist Persister
}

func NewManager(initial []models.Favorite, p Persister) *Manager {
	m := &Manager{persist: p}
	for _, f := range initial {
		if !m.Contains(f.Name) {
			m.favs = append(m.favs, f)
		}
	}
	return m
}

// Add appends the active city. Names compare case-sensitively. A persistence
// failure is returned after the in-memory list has been updated.
func (m *Manager) Add(ctx context.Context, coords *models.Coordinates) (models.Favorite, error) {
	if coords == nil {
		return models.Favorite{}, ErrNoActiveCity
	}
	if m.Contains(coords.Name) {
		observability.FavoritesTotal.WithLabelValues("duplicate").Inc()
		return models.Favorite{}, fmt.Errorf("%w: %q", ErrDuplicate, coords.Name)
	}

	fav := models.Favorite{Name: coords.Name, Lat: coords.Lat, Lon: coords.Lon}
	m.favs = append(m.favs, fav)
	observability.FavoritesTotal.WithLabelValues("add").Inc()
	return fav, m.save(ctx)
}

// Remove deletes the entry named name. It reports whether anything was removed;
// an absent name changes nothing and persists nothing.
func (m *Manager) Remove(ctx context.Context, name string) (bool, error) {
	for i, f := range m.favs {
		if f.Name == name {
			m.favs = append(m.favs[:i:i], m.favs[i+1:]...)
			observability.FavoritesTotal.WithLabelValues("remove").Inc()
			return true, m.save(ctx)
		}
	}
	return false, nil
}

// List returns a copy in insertion order.
func (m *Manager) List() []models.Favorite {
	out := make([]models.Favorite, len(m.favs))
	copy(out, m.favs)
	return out
}

func (m *Manager) Contains(name string) bool {
	_, ok := m.Get(name)
	return ok
}

func (m *Manager) Get(name string) (models.Favorite, bool) {
	for _, f := range m.favs {
		if f.Name == name {
			return f, true
		}
	}
	return models.Favorite{}, false
}

func (m *Manager) Len() int { return len(m.favs) }

func (m *Manager) save(ctx context.Context) error {
	if m.persist == nil {
		return nil
	}
	if err := m.persist.SaveFavorites(ctx, m.List()); err != nil {
		return fmt.Errorf("persist favorites: %w", err)
	}
	return nil
}
