// Package mealdb looks recipes up in TheMealDB public API.
package mealdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"
	DefaultTimeout = 5 * time.Second

	previewLength = 200
)

var ErrUnavailable = errors.New("online recipe search unavailable")

type Config struct {
	BaseURL string `envconfig:"MEALDB_BASE_URL" default:"https://www.themealdb.com/api/json/v1/1"`
}

type Meal struct {
	ID           string `json:"idMeal"`
	Name         string `json:"strMeal"`
	Category     string `json:"strCategory"`
	Area         string `json:"strArea"`
	Instructions string `json:"strInstructions"`
}

type searchResponse struct {
	Meals []Meal `json:"meals"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Search returns the meals matching query by name. Non-200 answers are ErrUnavailable.
func (c *Client) Search(ctx context.Context, query string) ([]Meal, error) {
	u := c.baseURL + "/search.php?" + url.Values{"s": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mealdb search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mealdb decode: %w", err)
	}
	return out.Meals, nil
}

// Lookup renders the first match as a one-paragraph summary for the agent.
func (c *Client) Lookup(ctx context.Context, query string) string {
	meals, err := c.Search(ctx, query)
	switch {
	case errors.Is(err, ErrUnavailable):
		return "Unable to search online recipes at this time."
	case err != nil:
		return fmt.Sprintf("Search failed: %v. Using local knowledge instead.", err)
	case len(meals) == 0:
		return fmt.Sprintf("No online recipes found for '%s'. Try different keywords.", query)
	}
	m := meals[0]
	return fmt.Sprintf("Found recipe: %s. Category: %s. Instructions preview: %s...",
		m.Name, m.Category, preview(m.Instructions))
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLength {
		return string(r[:previewLength])
	}
	return s
}
