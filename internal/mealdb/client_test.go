package mealdb

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClient_Lookup(t *testing.T) {
	long := strings.Repeat("a", 250)

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "found",
			status: http.StatusOK,
			body:   `{"meals":[{"idMeal":"1","strMeal":"Arrabiata","strCategory":"Vegetarian","strInstructions":"` + long + `"}]}`,
			want:   "Found recipe: Arrabiata. Category: Vegetarian. Instructions preview: " + strings.Repeat("a", 200) + "...",
		},
		{
			name:   "no meals",
			status: http.StatusOK,
			body:   `{"meals":null}`,
			want:   "No online recipes found for 'arrabiata'. Try different keywords.",
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `oops`,
			want:   "Unable to search online recipes at this time.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search.php", r.URL.Path)
				assert.Equal(t, "arrabiata", r.URL.Query().Get("s"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL + "/"})
			assert.Equal(t, tt.want, c.Lookup(t.Context(), "arrabiata"))
		})
	}
}

func TestClient_LookupTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	out := c.Lookup(t.Context(), "soup")
	assert.True(t, strings.HasPrefix(out, "Search failed: "))
	assert.True(t, strings.HasSuffix(out, "Using local knowledge instead."))
}
