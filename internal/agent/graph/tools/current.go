package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sous-chef/server/internal/recipe"
)

// Current is the recipe under discussion for one turn. The runner puts it in
// the context, tools read it and replace it.
type Current struct {
	mu sync.Mutex
	r  *recipe.Recipe
}

func NewCurrent(r *recipe.Recipe) *Current {
	return &Current{r: r}
}

func (c *Current) Get() *recipe.Recipe {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r
}

func (c *Current) Set(r *recipe.Recipe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.r = r
}

type currentKey struct{}

func WithCurrent(ctx context.Context, c *Current) context.Context {
	return context.WithValue(ctx, currentKey{}, c)
}

// CurrentFrom returns the holder in ctx, or an empty detached one.
func CurrentFrom(ctx context.Context) *Current {
	if c, ok := ctx.Value(currentKey{}).(*Current); ok && c != nil {
		return c
	}
	return &Current{}
}

// Summarize describes r for the agent prompts; empty for nil.
func Summarize(r *recipe.Recipe) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- Title: %s\n", r.Title)
	fmt.Fprintf(&b, "- Servings: %d\n", r.Servings)
	fmt.Fprintf(&b, "- Main ingredients: %s\n", strings.Join(r.MainIngredients, ", "))
	fmt.Fprintf(&b, "- Has %d total ingredients\n", len(r.AllIngredients))
	fmt.Fprintf(&b, "- Has %d instructions", len(r.Instructions))
	return b.String()
}
