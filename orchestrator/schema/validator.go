// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package schema validates LLM output against per-action schemas and
// drives the single repair retry.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// FieldKind is the expected JSON type of a schema field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindArray  FieldKind = "array"
	KindObject FieldKind = "object"
)

// FieldRule constrains one field of a schema.
type FieldRule struct {
	Kind     FieldKind
	Required bool
	// Enum restricts a string field to a closed value set.
	Enum []string
}

// Schema describes the shape an action's output must satisfy.
type Schema struct {
	ID     string
	Fields map[string]FieldRule
}

// Result is the outcome of validating one model output.
type Result struct {
	Valid bool
	// Data holds the parsed output whenever the raw text was parseable
	// JSON, even if validation failed. Callers use it for degraded
	// success.
	Data   map[string]any
	Errors []string
}

// Validator holds registered schemas.
type Validator struct {
	schemas map[string]*Schema
	mu      sync.RWMutex
}

// NewValidator creates a validator preloaded with the built-in action
// schemas.
func NewValidator() *Validator {
	v := &Validator{schemas: make(map[string]*Schema)}
	for _, s := range builtinSchemas() {
		v.RegisterSchema(s)
	}
	return v
}

// RegisterSchema installs or replaces a schema.
func (v *Validator) RegisterSchema(s *Schema) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[s.ID] = s
}

// Validate parses raw as JSON and checks it against the schema. An
// unknown schemaID fails validation rather than erroring; the pipeline
// treats it the same as any other invalid output.
func (v *Validator) Validate(raw, schemaID string) Result {
	data, err := parseJSONObject(raw)
	if err != nil {
		return Result{Errors: []string{"output is not a JSON object: " + err.Error()}}
	}

	v.mu.RLock()
	s, ok := v.schemas[schemaID]
	v.mu.RUnlock()
	if !ok {
		return Result{Data: data, Errors: []string{fmt.Sprintf("unknown schema %q", schemaID)}}
	}

	var errs []string
	for name, rule := range s.Fields {
		value, present := data[name]
		if !present || value == nil {
			if rule.Required {
				errs = append(errs, fmt.Sprintf("missing required field %q", name))
			}
			continue
		}
		if kindErr := checkKind(name, value, rule.Kind); kindErr != "" {
			errs = append(errs, kindErr)
			continue
		}
		if len(rule.Enum) > 0 {
			str, _ := value.(string)
			if !contains(rule.Enum, str) {
				errs = append(errs, fmt.Sprintf("field %q must be one of %v", name, rule.Enum))
			}
		}
	}

	return Result{Valid: len(errs) == 0, Data: data, Errors: errs}
}

// parseJSONObject decodes raw into a map, tolerating the markdown code
// fences models like to wrap JSON in.
func parseJSONObject(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func checkKind(name string, value any, kind FieldKind) string {
	ok := false
	switch kind {
	case KindString:
		_, ok = value.(string)
	case KindNumber:
		_, ok = value.(float64)
	case KindBool:
		_, ok = value.(bool)
	case KindArray:
		_, ok = value.([]any)
	case KindObject:
		_, ok = value.(map[string]any)
	default:
		return fmt.Sprintf("field %q has unknown kind %q", name, kind)
	}
	if !ok {
		return fmt.Sprintf("field %q must be a %s", name, kind)
	}
	return ""
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

// builtinSchemas covers the compiled-in actions.
func builtinSchemas() []*Schema {
	return []*Schema{
		{
			ID: "opportunity_risk",
			Fields: map[string]FieldRule{
				"risk_level":     {Kind: KindString, Required: true, Enum: []string{"low", "medium", "high"}},
				"risk_score":     {Kind: KindNumber, Required: true},
				"factors":        {Kind: KindArray, Required: true},
				"recommendation": {Kind: KindString, Required: false},
			},
		},
		{
			ID: "page_summary",
			Fields: map[string]FieldRule{
				"summary":    {Kind: KindString, Required: true},
				"key_points": {Kind: KindArray, Required: true},
			},
		},
		{
			ID: "field_extraction",
			Fields: map[string]FieldRule{
				"fields":     {Kind: KindObject, Required: true},
				"confidence": {Kind: KindNumber, Required: false},
			},
		},
	}
}
