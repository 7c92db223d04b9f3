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

// Package prompt renders model-ready prompts for registered actions.
// Each action carries a template plus its model parameters; org model
// preferences override the template's provider/model defaults at
// execution time.
package prompt

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"axonflow/assistant/shared/types"
)

// ModelParams bundles the per-action execution parameters the pipeline
// needs alongside the rendered prompt.
type ModelParams struct {
	Provider     string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	RetryPrompt  string
	SchemaID     string
}

// actionTemplate pairs a parsed template with its model parameters.
type actionTemplate struct {
	tmpl   *template.Template
	params ModelParams
}

// templateInput is the data every action template renders against.
type templateInput struct {
	Payload      *types.ContextPayload
	Fields       map[string]string
	Intelligence map[string]any
	ToneProfile  string
	VisibleText  string
}

// Engine holds the registered action templates.
type Engine struct {
	templates map[string]*actionTemplate
	mu        sync.RWMutex
}

// NewEngine creates an engine preloaded with the built-in action
// templates.
func NewEngine() *Engine {
	e := &Engine{templates: make(map[string]*actionTemplate)}
	for actionID, def := range builtinTemplates() {
		// Built-ins are compile-time constants; a parse failure here is
		// a programming error.
		if err := e.Register(actionID, def.text, def.params); err != nil {
			panic(fmt.Sprintf("builtin template %s: %v", actionID, err))
		}
	}
	return e
}

// Register parses and installs a template for actionID, replacing any
// existing one.
func (e *Engine) Register(actionID, text string, params ModelParams) error {
	tmpl, err := template.New(actionID).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template for %s: %w", actionID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[actionID] = &actionTemplate{tmpl: tmpl, params: params}
	return nil
}

// Params returns the model parameters for actionID.
func (e *Engine) Params(actionID string) (ModelParams, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	at, ok := e.templates[actionID]
	if !ok {
		return ModelParams{}, fmt.Errorf("no template registered for action %s", actionID)
	}
	return at.params, nil
}

// Render produces the prompt for actionID from the captured page payload
// and any org intelligence. toneProfile comes from the org config and
// may be empty.
func (e *Engine) Render(actionID string, payload *types.ContextPayload, intelligence map[string]any, toneProfile string) (string, error) {
	e.mu.RLock()
	at, ok := e.templates[actionID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no template registered for action %s", actionID)
	}

	input := templateInput{
		Payload:      payload,
		Intelligence: intelligence,
		ToneProfile:  toneProfile,
	}
	if payload != nil {
		input.Fields = payload.Fields
		input.VisibleText = payload.VisibleText
	}

	var out strings.Builder
	if err := at.tmpl.Execute(&out, input); err != nil {
		return "", fmt.Errorf("failed to render template for %s: %w", actionID, err)
	}
	return out.String(), nil
}

// RenderRepair embeds a failed model output and its validation errors
// into the action's retry prompt. Callers must have checked that the
// action declares one.
func (e *Engine) RenderRepair(actionID, originalOutput string, validationErrors []string) (string, error) {
	params, err := e.Params(actionID)
	if err != nil {
		return "", err
	}
	if params.RetryPrompt == "" {
		return "", fmt.Errorf("action %s declares no retry prompt", actionID)
	}

	var out strings.Builder
	out.WriteString(params.RetryPrompt)
	out.WriteString("\n\nPrevious output:\n")
	out.WriteString(originalOutput)
	out.WriteString("\n\nValidation errors:\n")
	for _, ve := range validationErrors {
		out.WriteString("- ")
		out.WriteString(ve)
		out.WriteString("\n")
	}
	return out.String(), nil
}
