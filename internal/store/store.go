// Package store persists recipes and answers the lookups the assistant needs.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sous-chef/server/internal/recipe"
)

var ErrNotFound = errors.New("recipe not found")

// Repository is the recipe database. Implementations return copies, never
// the records they hold.
type Repository interface {
	// Add stores r, generating an id when it has none, and returns the id.
	Add(ctx context.Context, r *recipe.Recipe) (string, error)
	// Update replaces an existing recipe.
	Update(ctx context.Context, r *recipe.Recipe) error
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
	All(ctx context.Context) ([]*recipe.Recipe, error)
	// Recent returns up to limit recipes, newest first.
	Recent(ctx context.Context, limit int) ([]*recipe.Recipe, error)
	ByDietaryTag(ctx context.Context, tag string) ([]*recipe.Recipe, error)
	ByMainIngredient(ctx context.Context, ingredient string) ([]*recipe.Recipe, error)
	// FindByTitle returns the first recipe whose title contains title, ignoring case.
	FindByTitle(ctx context.Context, title string) (*recipe.Recipe, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Driver string

const (
	DriverJSON     Driver = "json"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Config struct {
	Driver Driver `envconfig:"STORE_DRIVER" default:"json"`
	// Path is the JSON file or sqlite database file.
	Path string `envconfig:"STORE_PATH" default:"recipes_db.json"`
	DSN  string `envconfig:"STORE_DSN"`
}

// Open returns the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	switch cfg.Driver {
	case DriverJSON, "":
		return OpenJSON(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func sortNewestFirst(rs []*recipe.Recipe) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

func limitRecipes(rs []*recipe.Recipe, limit int) []*recipe.Recipe {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

func filterByTag(rs []*recipe.Recipe, tag string) []*recipe.Recipe {
	tag = strings.ToLower(tag)
	var out []*recipe.Recipe
	for _, r := range rs {
		for _, t := range r.DietaryTags {
			if strings.ToLower(t) == tag {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func filterByIngredient(rs []*recipe.Recipe, ingredient string) []*recipe.Recipe {
	var out []*recipe.Recipe
	for _, r := range rs {
		if r.HasMainIngredient(ingredient) {
			out = append(out, r)
		}
	}
	return out
}
