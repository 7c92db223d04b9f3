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

package schema

import (
	"context"
	"time"

	"axonflow/assistant/orchestrator/llm"
	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

// Executor is the provider-chain surface the repairer calls. Satisfied
// by *llm.Chain.
type Executor interface {
	Execute(ctx context.Context, prompt, primary string, fallbacks []string, options llm.QueryOptions) (*llm.Response, []llm.Attempt, error)
}

// RepairRenderer produces the one-shot repair prompt embedding the
// failed output and its validation errors. Satisfied by *prompt.Engine.
type RepairRenderer interface {
	RenderRepair(actionID, originalOutput string, validationErrors []string) (string, error)
}

// Outcome is the combined result of validation plus at most one repair
// attempt. Usage and Duration accumulate across both provider calls when
// a repair ran.
type Outcome struct {
	Valid    bool
	Data     map[string]any
	Errors   []string
	Repaired bool
	Usage    types.Usage
	Duration time.Duration
	Attempts []llm.Attempt
}

// RepairRequest carries everything needed to ask the chain for a fix.
type RepairRequest struct {
	ActionID    string
	SchemaID    string
	RetryPrompt string
	Primary     string
	Fallbacks   []string
	Options     llm.QueryOptions
}

// Repairer validates output and, when an action declares a retry prompt,
// issues exactly one repair call through the chain.
type Repairer struct {
	validator *Validator
	renderer  RepairRenderer
	chain     Executor
	log       *logger.Logger
}

// NewRepairer wires the validator, the repair-prompt renderer, and the
// provider chain together.
func NewRepairer(validator *Validator, renderer RepairRenderer, chain Executor) *Repairer {
	return &Repairer{
		validator: validator,
		renderer:  renderer,
		chain:     chain,
		log:       logger.New("schema"),
	}
}

// ValidateWithRepair checks raw against the schema; on failure, if the
// action declares a retry prompt, it asks the chain once for a corrected
// output and re-validates. When the repair also fails, the returned
// Outcome carries the best parse available so the caller can apply its
// degraded-success policy.
func (r *Repairer) ValidateWithRepair(ctx context.Context, raw string, req RepairRequest) Outcome {
	result := r.validator.Validate(raw, req.SchemaID)
	if result.Valid {
		return Outcome{Valid: true, Data: result.Data}
	}
	if req.RetryPrompt == "" || r.chain == nil {
		return Outcome{Data: result.Data, Errors: result.Errors}
	}

	repairPrompt, err := r.renderer.RenderRepair(req.ActionID, raw, result.Errors)
	if err != nil {
		r.log.Warn("", "", "could not build repair prompt", map[string]interface{}{
			"action": req.ActionID,
			"error":  err.Error(),
		})
		return Outcome{Data: result.Data, Errors: result.Errors}
	}

	resp, attempts, err := r.chain.Execute(ctx, repairPrompt, req.Primary, req.Fallbacks, req.Options)
	outcome := Outcome{Attempts: attempts}
	for _, a := range attempts {
		outcome.Duration += a.Duration
		outcome.Usage.Add(a.Usage)
	}
	if err != nil {
		r.log.Warn("", "", "repair call failed, degrading to original output", map[string]interface{}{
			"action": req.ActionID,
			"error":  err.Error(),
		})
		outcome.Data = result.Data
		outcome.Errors = result.Errors
		return outcome
	}

	repaired := r.validator.Validate(resp.Content, req.SchemaID)
	outcome.Repaired = true
	if repaired.Valid {
		outcome.Valid = true
		outcome.Data = repaired.Data
		return outcome
	}

	// Repair produced output but it still fails; keep whichever parse
	// exists, preferring the repaired one.
	outcome.Data = repaired.Data
	if outcome.Data == nil {
		outcome.Data = result.Data
	}
	outcome.Errors = repaired.Errors
	return outcome
}
