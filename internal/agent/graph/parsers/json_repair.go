package parsers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	logx "github.com/sous-chef/server/pkg/logger"
)

// Input beyond this size is cut before any stage runs.
const maxContentLen = 128 * 1024

// Stage names the repair step that produced a result.
type Stage string

const (
	StageDirect      Stage = "direct"
	StageExtract     Stage = "extract"
	StageClean       Stage = "clean"
	StageRepair      Stage = "repair"
	StageLines       Stage = "lines"
	StagePatterns    Stage = "patterns"
	StageDefault     Stage = "default"
	StageEmptyObject Stage = "empty_object"
)

// Result is the repaired object plus how it was obtained.
type Result struct {
	Data      map[string]any
	Stage     Stage
	Truncated bool
	// Failures lists stages that panicked, for diagnostics only.
	Failures []string
}

var (
	objectSpan     = regexp.MustCompile(`(?s)\{.*\}`)
	objectTail     = regexp.MustCompile(`(?s)\{.*`)
	herePrefix     = regexp.MustCompile(`(?is)^.*?Here is the JSON.*?:`)
	jsonPrefix     = regexp.MustCompile(`(?is)^.*?JSON.*?:`)
	quotedTemplate = regexp.MustCompile(`"[^"]*null_or_number[^"]*"`)
	openString     = regexp.MustCompile(`(?m):\s*"[^"\n]*$`)
	cleanIntentObj = regexp.MustCompile(`\{[^}]*"intent":\s*"[^"]*"[^}]*\}`)
	unquotedValue  = regexp.MustCompile(`:\s*([^",}\]\s][^",}\]]*)\s*([,}])`)
	trailingObj    = regexp.MustCompile(`,\s*}`)
	trailingArr    = regexp.MustCompile(`,\s*]`)
	danglingWord   = regexp.MustCompile(`\s*(?:and|the)\s*$`)
	keyValueLine   = regexp.MustCompile(`"?(\w+)"?\s*:\s*(.+)`)

	intentField      = regexp.MustCompile(`(?i)intent["']?\s*:\s*["']?(\w+)`)
	confidenceField  = regexp.MustCompile(`(?i)confidence["']?\s*:\s*([0-9.]+)`)
	ingredientsField = regexp.MustCompile(`(?i)ingredients["']?\s*:\s*\[([^\]]*)\]`)
	servingsField    = regexp.MustCompile(`(?i)servings["']?\s*:\s*(\d+)`)
)

// fieldAliases maps each canonical key to the names models use for it, in
// lookup order.
var fieldAliases = []struct {
	field string
	names []string
}{
	{"intent", []string{"intent", "user_intent", "action", "classification"}},
	{"confidence", []string{"confidence", "certainty", "score", "probability"}},
	{"entities", []string{"entities", "extracted_entities", "parameters", "data"}},
	{"reasoning", []string{"reasoning", "explanation", "rationale", "why"}},
}

var aliasNames = func() map[string]struct{} {
	out := map[string]struct{}{}
	for _, a := range fieldAliases {
		for _, n := range a.names {
			out[n] = struct{}{}
		}
	}
	return out
}()

// RepairJSON coerces arbitrary model output into an object that always has an
// "intent" key.
func RepairJSON(text string) map[string]any {
	return Repair(text).Data
}

// Repair runs the repair stages in order and returns the first success.
func Repair(text string) Result {
	res := Result{}
	if len(text) > maxContentLen {
		logx.Warn().
			Str("component", "json_repair").
			Int("max_len", maxContentLen).
			Int("orig_len", len(text)).
			Msg("content truncated due to size limit")
		text = truncateUTF8(text, maxContentLen)
		res.Truncated = true
	}
	text = strings.TrimSpace(text)

	stages := []struct {
		stage Stage
		run   func(string) (map[string]any, bool)
	}{
		{StageDirect, parseDirect},
		{StageExtract, extractObject},
		{StageClean, cleanAndParse},
		{StageRepair, repairAndParse},
		{StageLines, reconstructFromLines},
		{StagePatterns, extractFields},
	}
	for _, s := range stages {
		data, ok, err := runStage(s.run, text)
		if err != nil {
			res.Failures = append(res.Failures, fmt.Sprintf("%s: %v", s.stage, err))
			continue
		}
		if !ok {
			continue
		}
		// an empty object from the model means it had nothing to say
		if len(data) == 0 && (s.stage == StageDirect || s.stage == StageExtract) {
			res.Data = map[string]any{"intent": "help", "confidence": 0.3, "entities": map[string]any{}}
			res.Stage = StageEmptyObject
			return res
		}
		res.Data, res.Stage = Normalize(data), s.stage
		return res
	}

	res.Data = map[string]any{
		"intent":     "help",
		"parameters": map[string]any{},
		"confidence": 0.3,
		"reasoning":  "JSON parsing failed",
	}
	res.Stage = StageDefault
	return res
}

func runStage(fn func(string) (map[string]any, bool), text string) (data map[string]any, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "json_repair").Msgf("panic recovered: %v", r)
			data, ok, err = nil, false, fmt.Errorf("panic: %v", r)
		}
	}()
	data, ok = fn(text)
	return data, ok, nil
}

// Normalize maps alternative field names onto intent, confidence, entities
// and reasoning, copies every other key, and fills in the required defaults.
func Normalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+3)
	for _, a := range fieldAliases {
		for _, name := range a.names {
			if v, ok := in[name]; ok {
				out[a.field] = v
				break
			}
		}
	}
	for k, v := range in {
		if _, alias := aliasNames[k]; !alias {
			out[k] = v
		}
	}
	if _, ok := out["intent"]; !ok {
		out["intent"] = "help"
	}
	if _, ok := out["confidence"]; !ok {
		out["confidence"] = 0.5
	}
	if _, ok := out["entities"]; !ok {
		out["entities"] = map[string]any{}
	}
	return out
}

func decodeObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func parseDirect(text string) (map[string]any, bool) {
	return decodeObject(text)
}

// extractObject tries the widest {...} span, then fenced blocks, then the
// first balanced object.
func extractObject(text string) (map[string]any, bool) {
	candidates := make([]string, 0, 3)
	if span := objectSpan.FindString(text); span != "" {
		candidates = append(candidates, span)
	}
	if fenced, ok := fencedBlock(text); ok {
		candidates = append(candidates, fenced)
	}
	if balanced, ok := balancedObject(text); ok {
		candidates = append(candidates, balanced)
	}
	for _, c := range candidates {
		if m, ok := decodeObject(c); ok {
			return m, true
		}
	}
	return nil, false
}

func fencedBlock(text string) (string, bool) {
	idx := strings.Index(text, "```")
	if idx < 0 {
		return "", false
	}
	start := idx + 3
	if nl := strings.Index(text[start:], "\n"); nl >= 0 && nl < 20 {
		start += nl + 1
	}
	end := strings.Index(text[start:], "```")
	if end <= 0 {
		return "", false
	}
	return strings.TrimSpace(text[start : start+end]), true
}

// balancedObject returns the first {...} whose braces balance outside of
// string literals.
func balancedObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func cleanAndParse(text string) (map[string]any, bool) {
	cleaned, ok := CleanJSON(text)
	if !ok {
		return nil, false
	}
	return decodeObject(cleaned)
}

// CleanJSON strips chatter around the object and fills template placeholders
// a model copied verbatim from its prompt.
func CleanJSON(text string) (string, bool) {
	text = herePrefix.ReplaceAllString(text, "")
	text = jsonPrefix.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "null", "undefined", "none", "":
		return "", false
	}
	obj := objectSpan.FindString(text)
	if obj == "" {
		return "", false
	}
	// Bare placeholders go first so the quoted pattern cannot span two keys.
	obj = strings.ReplaceAll(obj, "null_or_number", "null")
	obj = strings.ReplaceAll(obj, "0.0_to_1.0", "0.5")
	obj = quotedTemplate.ReplaceAllString(obj, "null")
	obj = openString.ReplaceAllString(obj, `: "incomplete"`)
	return obj, true
}

func repairAndParse(text string) (map[string]any, bool) {
	repaired, ok := RepairBraces(text)
	if !ok {
		return nil, false
	}
	return decodeObject(repaired)
}

// RepairBraces closes a cut-off object, quotes bare values and drops
// trailing commas.
func RepairBraces(text string) (string, bool) {
	obj := objectTail.FindString(text)
	if obj == "" {
		return "", false
	}
	if strings.Contains(obj, `"intent": "create_recipe`) && strings.HasSuffix(obj, " and ") {
		if clean := cleanIntentObj.FindString(obj); clean != "" {
			obj = clean
		}
	}
	if open, closed := strings.Count(obj, "{"), strings.Count(obj, "}"); open > closed {
		obj += strings.Repeat("}", open-closed)
	}
	obj = unquotedValue.ReplaceAllString(obj, `: "${1}"${2}`)
	obj = trailingObj.ReplaceAllString(obj, "}")
	obj = trailingArr.ReplaceAllString(obj, "]")
	obj = danglingWord.ReplaceAllString(obj, "")
	return obj, true
}

// reconstructFromLines builds an object from "key: value" lines.
func reconstructFromLines(text string) (map[string]any, bool) {
	out := map[string]any{}
	for _, line := range strings.Split(text, "\n") {
		m := keyValueLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		out[m[1]] = lineValue(strings.TrimRight(strings.TrimSpace(m[2]), ","))
	}
	return out, len(out) > 0
}

func lineValue(v string) any {
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`):
		if len(v) < 2 {
			return ""
		}
		return v[1 : len(v)-1]
	case lower == "true" || lower == "false":
		return lower == "true"
	case lower == "null":
		return nil
	case strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]"):
		var arr []any
		if err := json.Unmarshal([]byte(v), &arr); err == nil {
			return arr
		}
	case isNumberish(v):
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return strings.Trim(v, `"`)
}

// isNumberish reports digits with optional dots, e.g. "3" or "0.95".
func isNumberish(v string) bool {
	digits := 0
	for _, c := range v {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
		default:
			return false
		}
	}
	return digits > 0
}

// extractFields pulls the known fields out one pattern at a time.
func extractFields(text string) (map[string]any, bool) {
	out := map[string]any{}
	if m := intentField.FindStringSubmatch(text); m != nil {
		out["intent"] = m[1]
	}
	if m := confidenceField.FindStringSubmatch(text); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, false
		}
		out["confidence"] = f
	}

	entities := map[string]any{}
	if m := ingredientsField.FindStringSubmatch(text); m != nil {
		items := []any{}
		for _, item := range strings.Split(m[1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `"'`)
			if item != "" {
				items = append(items, item)
			}
		}
		entities["ingredients"] = items
	}
	if m := servingsField.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			entities["servings"] = float64(n)
		}
	}
	if len(entities) > 0 {
		out["entities"] = entities
	}
	return out, true
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
