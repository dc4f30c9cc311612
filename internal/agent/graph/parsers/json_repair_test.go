package parsers

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairStages(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		stage Stage
		want  map[string]any
	}{
		{
			name:  "direct object",
			in:    `{"intent":"create_recipe","parameters":{"ingredients":["chicken"]},"confidence":0.9}`,
			stage: StageDirect,
			want: map[string]any{
				"intent":     "create_recipe",
				"entities":   map[string]any{"ingredients": []any{"chicken"}},
				"confidence": 0.9,
			},
		},
		{
			name:  "empty object",
			in:    "  {}  ",
			stage: StageEmptyObject,
			want:  map[string]any{"intent": "help", "confidence": 0.3, "entities": map[string]any{}},
		},
		{
			name:  "object inside chatter",
			in:    `Sure! {"intent": "get_recent", "confidence": 0.8} hope that helps`,
			stage: StageExtract,
			want:  map[string]any{"intent": "get_recent", "confidence": 0.8, "entities": map[string]any{}},
		},
		{
			name:  "fenced block after a broken object",
			in:    "Result: {bad} ```json\n{\"intent\":\"help\",\"reasoning\":\"unclear\"}\n```",
			stage: StageExtract,
			want:  map[string]any{"intent": "help", "confidence": 0.5, "entities": map[string]any{}, "reasoning": "unclear"},
		},
		{
			name:  "template placeholders",
			in:    `Here is the JSON output: {"intent": "scale_recipe", "confidence": 0.0_to_1.0, "parameters": {"target_servings": null_or_number}}`,
			stage: StageClean,
			want: map[string]any{
				"intent":     "scale_recipe",
				"confidence": 0.5,
				"entities":   map[string]any{"target_servings": nil},
			},
		},
		{
			name:  "bare placeholder followed by another key",
			in:    `{"intent": "create_recipe", "confidence": null_or_number, "entities": {}}`,
			stage: StageClean,
			want: map[string]any{
				"intent":     "create_recipe",
				"confidence": nil,
				"entities":   map[string]any{},
			},
		},
		{
			name:  "cut off object",
			in:    `{"intent": "create_recipe", "confidence": 0.9, "parameters": {"ingredients": ["beef"]`,
			stage: StageRepair,
			want: map[string]any{
				"intent":     "create_recipe",
				"confidence": "0.9",
				"entities":   map[string]any{"ingredients": []any{"beef"}},
			},
		},
		{
			name:  "key value lines",
			in:    "intent: get_details\nconfidence: 0.75\nrecipe_name: \"Beef Stew\",",
			stage: StageLines,
			want: map[string]any{
				"intent":      "get_details",
				"confidence":  0.75,
				"recipe_name": "Beef Stew",
				"entities":    map[string]any{},
			},
		},
		{
			name:  "single quoted fields",
			in:    `{'intent': 'create_recipe', 'ingredients': ['beef', 'rice'], 'servings': 4, 'confidence': 0.7}`,
			stage: StagePatterns,
			want: map[string]any{
				"intent":     "create_recipe",
				"confidence": 0.7,
				"entities":   map[string]any{"ingredients": []any{"beef", "rice"}, "servings": float64(4)},
			},
		},
		{
			name:  "unparseable confidence",
			in:    `{'confidence': 1..2}`,
			stage: StageDefault,
			want: map[string]any{
				"intent":     "help",
				"parameters": map[string]any{},
				"confidence": 0.3,
				"reasoning":  "JSON parsing failed",
			},
		},
		{
			name:  "null",
			in:    "null",
			stage: StagePatterns,
			want:  map[string]any{"intent": "help", "confidence": 0.5, "entities": map[string]any{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repair(tt.in)
			assert.Equal(t, tt.stage, got.Stage)
			if diff := cmp.Diff(tt.want, got.Data); diff != "" {
				t.Errorf("Repair() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeAliases(t *testing.T) {
	got := Normalize(map[string]any{
		"user_intent":        "search_recipes",
		"certainty":          0.7,
		"extracted_entities": map[string]any{"query": "soup"},
		"explanation":        "asked to find soup",
		"action":             "ignored, user_intent wins",
		"model":              "llama3.2",
	})
	want := map[string]any{
		"intent":     "search_recipes",
		"confidence": 0.7,
		"entities":   map[string]any{"query": "soup"},
		"reasoning":  "asked to find soup",
		"model":      "llama3.2",
	}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestCleanJSON(t *testing.T) {
	_, ok := CleanJSON("Here is the JSON: undefined")
	assert.False(t, ok)

	got, ok := CleanJSON("{\"intent\": \"help\", \"reasoning\": \"the user wa\n}")
	require.True(t, ok)
	assert.Equal(t, "{\"intent\": \"help\", \"reasoning\": \"incomplete\"\n}", got)
}

func TestRepairBracesDropsCutOffConjunction(t *testing.T) {
	got, ok := RepairBraces(`{"intent": "create_recipe", "confidence": 0.9} and the parameters are chicken and `)
	require.True(t, ok)
	assert.Equal(t, `{"intent": "create_recipe", "confidence": "0.9"}`, got)
}

func TestRepairTruncatesHugeInput(t *testing.T) {
	in := `{"intent": "help"` + strings.Repeat("é", maxContentLen)
	got := Repair(in)
	assert.True(t, got.Truncated)
	assert.Contains(t, got.Data, "intent")
}

func TestRepairAlwaysHasIntent(t *testing.T) {
	adversarial := []string{
		"", " ", "{", "}", "}{", "{{{{", "[]", "[{}]", `"just a string"`, "42", "true",
		"```json\n```", "```", `{"intent": null}`, `{"a": {"b": {"c": [`,
		"intent:", ":::", "\x00\xff\xfe", "null_or_number", `{"confidence": "high"`,
		strings.Repeat("{", 5000), strings.Repeat(`"`, 4097),
	}
	alphabet := []rune(`{}[]":,.0123456789abcdefintent confidence\n'` + "`")
	rng := rand.New(rand.NewPCG(7, 11))
	for range 500 {
		n := rng.IntN(120)
		b := make([]rune, n)
		for i := range b {
			b[i] = alphabet[rng.IntN(len(alphabet))]
		}
		adversarial = append(adversarial, string(b))
	}

	for _, in := range adversarial {
		got := RepairJSON(in)
		require.NotNil(t, got, "input %q", in)
		require.Contains(t, got, "intent", "input %q", in)
	}
}

func FuzzRepairJSON(f *testing.F) {
	for _, seed := range []string{
		`{"intent":"help"}`,
		"Here is the JSON: {\"intent\": \"create_recipe\"",
		"intent: scale_recipe\nconfidence: 0.9",
		`{'intent': 'help'}`,
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		got := RepairJSON(in)
		if got == nil {
			t.Fatal("nil result")
		}
		if _, ok := got["intent"]; !ok {
			t.Fatalf("no intent for %q: %v", in, got)
		}
	})
}
