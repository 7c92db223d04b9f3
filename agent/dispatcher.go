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

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

// Dispatcher routes an action request to the backend orchestrator or a
// local stub according to the action's definition and what actually
// works at runtime.
type Dispatcher struct {
	registry *Registry
	backend  *BackendClient
	bridges  []IdentityBridge
	intel    IntelligenceFetcher
	history  HistoryStore
	log      *logger.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithIdentityBridges sets the identity resolution order.
func WithIdentityBridges(bridges ...IdentityBridge) DispatcherOption {
	return func(d *Dispatcher) { d.bridges = bridges }
}

// WithIntelligence attaches a best-effort intelligence fetcher.
func WithIntelligence(f IntelligenceFetcher) DispatcherOption {
	return func(d *Dispatcher) { d.intel = f }
}

// WithHistory attaches a history store for successful runs.
func WithHistory(h HistoryStore) DispatcherOption {
	return func(d *Dispatcher) { d.history = h }
}

// NewDispatcher creates a dispatcher over the given registry and
// backend client. The backend may be unconfigured; actions then run on
// their stubs where the fallback strategy allows it.
func NewDispatcher(registry *Registry, backend *BackendClient, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		backend:  backend,
		log:      logger.New("agent-dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes actionID against the page payload and always returns a
// populated ActionResult; failures are reported in the result, never
// panicked or half-filled.
func (d *Dispatcher) Run(ctx context.Context, actionID string, payload *types.ContextPayload) types.ActionResult {
	if d.registry == nil || !d.registry.Loaded() {
		return callerError("action registry is not loaded")
	}
	if payload == nil {
		return callerError("no page context provided")
	}
	// The dispatcher sits next to the capture, so a missing timestamp
	// is stamped here; the orchestrator flags one it never received.
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	action, ok := d.registry.Get(actionID)
	if !ok {
		return callerError(fmt.Sprintf("unknown action %q", actionID))
	}
	if !action.compatible(payload) {
		return callerError(fmt.Sprintf("action %q does not apply to %s/%s pages",
			actionID, payload.Platform, payload.PageType))
	}

	if !action.UseBackend || action.FallbackStrategy == types.FallbackStubOnly {
		return d.runStub(ctx, action, payload)
	}
	if !d.backend.Configured() {
		// Backend-first action with no backend reachable at all:
		// fall through to the same strategy as a failed call.
		return d.afterBackendFailure(ctx, action, payload,
			"orchestrator is not configured")
	}

	// Identity and intelligence are independent lookups; both are
	// best-effort, so neither blocks the other.
	var (
		wg           sync.WaitGroup
		identity     *types.Identity
		intelligence map[string]any
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		identity = d.resolveIdentity(ctx)
	}()
	if d.intel != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			extra, err := d.intel.Fetch(ctx, payload)
			if err != nil {
				d.log.Debug("", "", "intelligence fetch skipped", map[string]interface{}{
					"action": action.ID,
					"reason": err.Error(),
				})
				return
			}
			intelligence = extra
		}()
	}
	wg.Wait()

	orgID := ""
	if identity != nil {
		orgID = identity.OrgID
	}

	req := &types.ExecuteRequest{
		Payload:      payload,
		Identity:     identity,
		Intelligence: intelligence,
	}

	resp, err := d.backend.Execute(ctx, action.ID, req)
	if err != nil {
		d.log.Warn(orgID, "", "backend execution failed", map[string]interface{}{
			"action": action.ID,
			"error":  err.Error(),
		})
		return d.afterBackendFailure(ctx, action, payload, err.Error())
	}

	result := types.ActionResult{
		Success:  resp.Success,
		Data:     resp.Data,
		Error:    resp.Error,
		Source:   "backend",
		Metadata: resp.ExecutionMetadata,
	}
	if meta := resp.ExecutionMetadata; meta != nil && meta.Policy != nil {
		// Organization policy said no. A stub would sidestep the
		// policy, so the rejection is terminal.
		result.Success = false
		result.PolicyBlock = true
		result.PolicyReason = meta.Policy.Reason
		if result.Error == "" {
			result.Error = meta.Policy.Message
		}
		return result
	}
	if !resp.Success {
		return d.afterBackendFailure(ctx, action, payload, resp.Error)
	}
	d.record(action, payload, result)
	return result
}

// afterBackendFailure applies the action's fallback strategy once the
// backend path has definitively failed for a non-policy reason.
func (d *Dispatcher) afterBackendFailure(ctx context.Context, action *ActionDefinition, payload *types.ContextPayload, detail string) types.ActionResult {
	if action.FallbackStrategy != types.FallbackBackendThenStub || action.Stub == nil {
		return types.ActionResult{
			Success: false,
			Error:   "This action requires the assistant service, which is currently unavailable.",
			Details: detail,
			Source:  "backend",
		}
	}
	result := d.runStub(ctx, action, payload)
	if !result.Success {
		// Both paths are down; report one generic failure instead
		// of stacking two error messages.
		return types.ActionResult{
			Success: false,
			Error:   "The action could not be completed right now. Please try again later.",
			Details: detail + "; stub: " + result.Error,
			Source:  "stub",
		}
	}
	result.Details = detail
	return result
}

func (d *Dispatcher) runStub(ctx context.Context, action *ActionDefinition, payload *types.ContextPayload) types.ActionResult {
	if action.Stub == nil {
		return types.ActionResult{
			Success: false,
			Error:   fmt.Sprintf("action %q has no local implementation", action.ID),
			Source:  "stub",
		}
	}
	data, err := action.Stub(ctx, payload)
	if err != nil {
		return types.ActionResult{
			Success: false,
			Error:   err.Error(),
			Source:  "stub",
		}
	}
	result := types.ActionResult{
		Success: true,
		Data:    data,
		Source:  "stub",
	}
	d.record(action, payload, result)
	return result
}

// resolveIdentity walks the bridges in order and takes the first one
// that produces a user. Missing identity is not an error here; the
// orchestrator degrades to anonymous on its side.
func (d *Dispatcher) resolveIdentity(ctx context.Context) *types.Identity {
	for _, bridge := range d.bridges {
		id, err := bridge.Resolve(ctx)
		if err == nil && id != nil {
			return id
		}
	}
	return nil
}

// record writes a history entry for a successful run. The write is a
// detached task: the caller's result never waits on the store, and the
// request context does not cancel it.
func (d *Dispatcher) record(action *ActionDefinition, payload *types.ContextPayload, result types.ActionResult) {
	if d.history == nil || !result.Success {
		return
	}
	key := entityKey(payload)
	if key == "" {
		return
	}
	entry := HistoryEntry{
		EntityKey: key,
		ActionID:  action.ID,
		Summary:   summarize(result.Data),
		Source:    result.Source,
	}
	go func() {
		if err := d.history.Append(context.Background(), entry); err != nil {
			d.log.Debug("", "", "history append failed", map[string]interface{}{
				"action": action.ID,
				"error":  err.Error(),
			})
		}
	}()
}

func callerError(msg string) types.ActionResult {
	return types.ActionResult{
		Success: false,
		Error:   msg,
		Source:  "agent",
	}
}
