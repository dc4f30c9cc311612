package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sous-chef/server/internal/recipe"
	logx "github.com/sous-chef/server/pkg/logger"
)

// JSONStore keeps every recipe in memory and rewrites the whole file on each
// mutation.
type JSONStore struct {
	path string

	mu      sync.RWMutex
	recipes map[string]*recipe.Recipe
}

// OpenJSON loads path if it exists. A missing file is an empty store.
func OpenJSON(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, recipes: make(map[string]*recipe.Recipe)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read recipes file: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}

	var data map[string]*recipe.Recipe
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("decode recipes file: %w", err)
	}
	for id, r := range data {
		if r == nil {
			continue
		}
		if r.ID == "" {
			r.ID = id
		}
		r.Normalize()
		s.recipes[id] = r
	}
	logx.Info().Int("count", len(s.recipes)).Str("path", s.path).Msg("loaded recipes")
	return nil
}

// save must be called with mu held.
func (s *JSONStore) save() error {
	b, err := json.MarshalIndent(s.recipes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recipes: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write recipes file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace recipes file: %w", err)
	}
	logx.Debug().Int("count", len(s.recipes)).Str("path", s.path).Msg("saved recipes")
	return nil
}

func (s *JSONStore) Add(_ context.Context, r *recipe.Recipe) (string, error) {
	c := r.Clone()
	c.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[c.ID] = c
	if err := s.save(); err != nil {
		return "", err
	}
	r.ID = c.ID
	return c.ID, nil
}

func (s *JSONStore) Update(_ context.Context, r *recipe.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recipes[r.ID]; !ok {
		return ErrNotFound
	}
	s.recipes[r.ID] = r.Clone()
	return s.save()
}

func (s *JSONStore) Get(_ context.Context, id string) (*recipe.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recipes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *JSONStore) All(_ context.Context) ([]*recipe.Recipe, error) {
	return s.snapshot(), nil
}

func (s *JSONStore) snapshot() []*recipe.Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*recipe.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, r.Clone())
	}
	sortNewestFirst(out)
	return out
}

func (s *JSONStore) Recent(_ context.Context, limit int) ([]*recipe.Recipe, error) {
	return limitRecipes(s.snapshot(), limit), nil
}

func (s *JSONStore) ByDietaryTag(_ context.Context, tag string) ([]*recipe.Recipe, error) {
	return filterByTag(s.snapshot(), tag), nil
}

func (s *JSONStore) ByMainIngredient(_ context.Context, ingredient string) ([]*recipe.Recipe, error) {
	return filterByIngredient(s.snapshot(), ingredient), nil
}

func (s *JSONStore) FindByTitle(_ context.Context, title string) (*recipe.Recipe, error) {
	needle := strings.ToLower(title)
	for _, r := range s.snapshot() {
		if strings.Contains(strings.ToLower(r.Title), needle) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *JSONStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recipes), nil
}

func (s *JSONStore) Close() error { return nil }

var _ Repository = (*JSONStore)(nil)
