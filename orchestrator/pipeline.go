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

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"axonflow/assistant/orchestrator/identity"
	"axonflow/assistant/orchestrator/llm"
	"axonflow/assistant/orchestrator/orgconfig"
	"axonflow/assistant/orchestrator/prompt"
	"axonflow/assistant/orchestrator/schema"
	"axonflow/assistant/orchestrator/usage"
	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

// Service runs the action execution pipeline: identity, org config,
// quota gates, prompt rendering, the provider chain, and schema
// validation with one repair retry.
type Service struct {
	identities *identity.Resolver
	orgs       *orgconfig.Resolver
	limiter    *usage.Limiter
	prompts    *prompt.Engine
	chain      *llm.Chain
	repairer   *schema.Repairer
	metrics    *serviceMetrics
	log        *logger.Logger

	// fallbackProviders is the configured chain order after the
	// org-preferred primary.
	fallbackProviders []string
	moodleConfigured  bool
}

// NewService wires the pipeline components together.
func NewService(
	identities *identity.Resolver,
	orgs *orgconfig.Resolver,
	limiter *usage.Limiter,
	prompts *prompt.Engine,
	chain *llm.Chain,
	repairer *schema.Repairer,
	fallbackProviders []string,
	moodleConfigured bool,
) *Service {
	return &Service{
		identities:        identities,
		orgs:              orgs,
		limiter:           limiter,
		prompts:           prompts,
		chain:             chain,
		repairer:          repairer,
		metrics:           newServiceMetrics(),
		log:               logger.New("pipeline"),
		fallbackProviders: fallbackProviders,
		moodleConfigured:  moodleConfigured,
	}
}

// Execute runs one action end to end. token is the caller's bearer
// token, possibly empty. The returned response always carries execution
// metadata, including on failure.
func (s *Service) Execute(ctx context.Context, actionID, requestID, token string, req *types.ExecuteRequest) *types.ExecuteResponse {
	builder := NewContextBuilder(actionID, requestID)

	if req == nil || req.Payload == nil {
		return s.fail(builder, actionID, "request payload is required")
	}
	payload := req.Payload
	if payload.Platform == "" {
		payload.Platform = unknownValue
		builder.Warn(WarningPlatformUnknown)
	}
	if payload.PageType == "" {
		payload.PageType = unknownValue
		builder.Warn(WarningPageTypeUnknown)
	}
	if payload.Source == "" {
		payload.Source = unknownValue
		builder.Warn(WarningSourceMissing)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
		builder.Warn(WarningTimestampMissing)
	}

	// Identity: server-side resolution first, then whatever the agent
	// bridged in, then anonymous.
	caller, idSource := s.identities.Resolve(ctx, token)
	if caller == nil && req.Identity != nil && req.Identity.UserID != "" {
		caller = req.Identity
		idSource = types.IdentitySourceExtension
	}
	builder.IdentitySource(idSource)
	switch {
	case caller == nil:
		builder.Warn(WarningIdentityMissing)
	case idSource == types.IdentitySourceMock:
		builder.Warn(WarningUsingMockIdentity)
	}

	var orgID, userID string
	if caller != nil {
		orgID = caller.OrgID
		userID = caller.UserID
	}

	cfg, cfgSource := s.orgs.Resolve(ctx, orgID)
	builder.OrgConfigSource(cfgSource)
	if cfg == nil {
		builder.Warn(WarningOrgConfigMissing).Warn(WarningUsingDefaultConfig)
	}
	if s.moodleConfigured && cfgSource != types.ConfigSourceMoodle && orgID != "" {
		builder.Warn(WarningMoodleUnavailable)
	}

	if !orgconfig.IsActionAllowed(cfg, actionID) {
		return s.block(builder, actionID, orgID, requestID,
			types.ReasonActionNotAllowed, "this action is not enabled for your organization")
	}
	if decision := s.limiter.CheckAllowed(ctx, orgID, userID, cfg, payload.URL); !decision.Allowed {
		return s.block(builder, actionID, orgID, requestID, decision.Reason, decision.Message)
	}

	params, err := s.prompts.Params(actionID)
	if err != nil {
		return s.fail(builder, actionID, fmt.Sprintf("unknown action %q", actionID))
	}

	toneProfile := ""
	if cfg != nil {
		toneProfile = cfg.ToneProfile
	}
	renderedPrompt, err := s.prompts.Render(actionID, payload, req.Intelligence, toneProfile)
	if err != nil {
		return s.fail(builder, actionID, "failed to build the model prompt")
	}

	// Org model preferences override the template defaults.
	pref := s.orgs.EffectiveModelPreferences(cfg, actionID)
	provider := params.Provider
	model := params.Model
	if pref.Provider != "" {
		provider = pref.Provider
	}
	if pref.Model != "" {
		model = pref.Model
	}
	maxTokens := params.MaxTokens
	if cfg != nil && cfg.Limits.MaxTokensPerAction > 0 && (maxTokens == 0 || maxTokens > cfg.Limits.MaxTokensPerAction) {
		maxTokens = cfg.Limits.MaxTokensPerAction
	}
	builder.PrimaryProvider(provider, model)

	options := llm.QueryOptions{
		MaxTokens:    maxTokens,
		Temperature:  params.Temperature,
		Model:        model,
		SystemPrompt: params.SystemPrompt,
	}
	resp, attempts, err := s.chain.Execute(ctx, renderedPrompt, provider, s.fallbackProviders, options)
	recordAttempts(attempts)
	for _, a := range attempts {
		builder.AddTokens(a.Usage.TotalTokens)
	}
	if err != nil {
		s.log.ErrorWithCode(orgID, requestID, "all providers failed", 0, err, map[string]interface{}{
			"action":   actionID,
			"attempts": len(attempts),
		})
		return s.fail(builder, actionID, "AI providers are currently unavailable")
	}

	final := attempts[len(attempts)-1]
	builder.FinalProvider(final.Provider, respModel(resp, final))
	if final.Provider != provider {
		builder.Warn(WarningProviderFallbackUsed)
		promProviderFallbacks.Inc()
	}

	data := map[string]any{"text": resp.Content}
	if params.SchemaID != "" {
		outcome := s.repairer.ValidateWithRepair(ctx, resp.Content, schema.RepairRequest{
			ActionID:    actionID,
			SchemaID:    params.SchemaID,
			RetryPrompt: params.RetryPrompt,
			Primary:     provider,
			Fallbacks:   s.fallbackProviders,
			Options:     options,
		})
		recordAttempts(outcome.Attempts)
		builder.AddTokens(outcome.Usage.TotalTokens)
		if outcome.Repaired {
			if outcome.Valid {
				promSchemaRepairs.WithLabelValues("success").Inc()
			} else {
				promSchemaRepairs.WithLabelValues("failed").Inc()
			}
		}
		if outcome.Data != nil {
			data = outcome.Data
		}
		if !outcome.Valid {
			// Deliberate product decision: partial AI output beats a
			// hard failure. Surface the problem as a warning only.
			builder.Warn(WarningValidationFailed)
			s.log.Warn(orgID, requestID, "model output failed schema validation, returning best effort", map[string]interface{}{
				"action": actionID,
				"errors": outcome.Errors,
			})
		}
	}

	s.limiter.Increment(ctx, orgID, userID)

	meta := builder.Build()
	s.observe(actionID, "success", meta)
	s.log.InfoWithDuration(orgID, requestID, "action executed", float64(meta.Duration.Milliseconds()), map[string]interface{}{
		"action":   actionID,
		"provider": meta.ProviderFinal,
		"tokens":   meta.TokensUsed,
		"fallback": meta.ProviderFallbackOccurred,
	})

	return &types.ExecuteResponse{
		Success:           true,
		Data:              data,
		ExecutionMetadata: meta,
	}
}

// Status reports today's usage counters for an org/user pair.
func (s *Service) Status(ctx context.Context, orgID, userID string) (int, int) {
	return s.limiter.Status(ctx, orgID, userID)
}

func (s *Service) block(builder *ContextBuilder, actionID, orgID, requestID, reason, message string) *types.ExecuteResponse {
	builder.PolicyBlock(reason, message)
	meta := builder.Build()
	s.observe(actionID, "blocked", meta)
	promPolicyBlocks.WithLabelValues(reason).Inc()
	s.log.Warn(orgID, requestID, "action blocked by policy", map[string]interface{}{
		"action": actionID,
		"reason": reason,
	})
	return &types.ExecuteResponse{
		Success:           false,
		Error:             message,
		ExecutionMetadata: meta,
	}
}

func (s *Service) fail(builder *ContextBuilder, actionID, message string) *types.ExecuteResponse {
	meta := builder.Build()
	s.observe(actionID, "failed", meta)
	return &types.ExecuteResponse{
		Success:           false,
		Error:             message,
		ExecutionMetadata: meta,
	}
}

func (s *Service) observe(actionID, status string, meta *types.ExecutionMetadata) {
	promActionsTotal.WithLabelValues(actionID, status).Inc()
	promActionDuration.WithLabelValues(actionID).Observe(float64(meta.Duration.Milliseconds()))
	promTokensUsed.WithLabelValues(meta.ProviderFinal).Add(float64(meta.TokensUsed))
	s.metrics.record(status, meta.Duration)
}

func recordAttempts(attempts []llm.Attempt) {
	for _, a := range attempts {
		status := "success"
		if a.Err != "" {
			status = "failed"
		}
		promLLMCalls.WithLabelValues(a.Provider, status).Inc()
	}
}

func respModel(resp *llm.Response, final llm.Attempt) string {
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	return final.Model
}
