package classifier

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sous-chef/server/internal/agent/model"
)

//go:embed intents.yaml
var intentsYAML []byte

// examplesInPrompt is how many examples per intent the prompt shows.
const examplesInPrompt = 2

type Definition struct {
	Name        model.Intent `yaml:"name"`
	Description string       `yaml:"description"`
	Parameters  []string     `yaml:"parameters"`
	Examples    []string     `yaml:"examples"`
}

type catalogue struct {
	Intents []Definition `yaml:"intents"`
}

var defaultDefinitions = sync.OnceValues(func() ([]Definition, error) {
	return LoadDefinitions(intentsYAML)
})

// DefaultDefinitions returns the embedded intent catalogue.
func DefaultDefinitions() ([]Definition, error) {
	return defaultDefinitions()
}

// LoadDefinitions decodes a YAML catalogue. Every intent must be described
// exactly once.
func LoadDefinitions(data []byte) ([]Definition, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode intent definitions: %w", err)
	}
	seen := make(map[model.Intent]bool, len(c.Intents))
	for _, d := range c.Intents {
		if !d.Name.Valid() {
			return nil, fmt.Errorf("unknown intent %q in definitions", d.Name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("intent %q defined twice", d.Name)
		}
		seen[d.Name] = true
	}
	for _, i := range model.Intents {
		if !seen[i] {
			return nil, fmt.Errorf("intent %q has no definition", i)
		}
	}
	return c.Intents, nil
}

// RenderDefinitions formats the catalogue for the prompt.
func RenderDefinitions(defs []Definition) string {
	var b strings.Builder
	for _, d := range defs {
		examples := d.Examples[:min(examplesInPrompt, len(d.Examples))]
		fmt.Fprintf(&b, "\n**%s**:\n", d.Name)
		fmt.Fprintf(&b, "  Description: %s\n", d.Description)
		fmt.Fprintf(&b, "  Parameters: %s\n", strings.Join(d.Parameters, ", "))
		fmt.Fprintf(&b, "  Examples: %s\n", strings.Join(examples, ", "))
	}
	return b.String()
}

// ExampleQueries flattens every example, in catalogue order.
func ExampleQueries(defs []Definition) []string {
	var out []string
	for _, d := range defs {
		out = append(out, d.Examples...)
	}
	return out
}
