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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/assistant/orchestrator/identity"
	"axonflow/assistant/orchestrator/llm"
	"axonflow/assistant/orchestrator/orgconfig"
	"axonflow/assistant/orchestrator/prompt"
	"axonflow/assistant/orchestrator/schema"
	"axonflow/assistant/orchestrator/usage"
	"axonflow/assistant/shared/types"
)

const validSummary = `{"summary": "a page about widgets", "key_points": ["widgets"]}`

type memStore struct {
	configs map[string]*types.OrgConfig
}

func (s *memStore) Get(ctx context.Context, orgID string) (*types.OrgConfig, error) {
	return s.configs[orgID], nil
}
func (s *memStore) Upsert(ctx context.Context, cfg *types.OrgConfig) error {
	s.configs[cfg.OrgID] = cfg
	return nil
}
func (s *memStore) SoftDelete(ctx context.Context, orgID string) error {
	cfg, ok := s.configs[orgID]
	if !ok {
		return fmt.Errorf("org config %s not found", orgID)
	}
	cfg.Active = false
	return nil
}

func (s *memStore) Restore(ctx context.Context, orgID string) error {
	cfg, ok := s.configs[orgID]
	if !ok {
		return fmt.Errorf("org config %s not found", orgID)
	}
	cfg.Active = true
	return nil
}
func (s *memStore) List(ctx context.Context, includeInactive bool) ([]*types.OrgConfig, error) {
	return nil, nil
}

type pipelineEnv struct {
	service *Service
	chain   *llm.Chain
	store   *memStore
}

func newPipelineEnv(t *testing.T, providers ...llm.Provider) *pipelineEnv {
	t.Helper()

	chain := llm.NewChain()
	var order []string
	for _, p := range providers {
		chain.Register(p)
		order = append(order, p.Name())
	}

	store := &memStore{configs: make(map[string]*types.OrgConfig)}
	orgs := orgconfig.NewResolver(nil, store, orgconfig.WithDefaultProvider(firstName(order)))
	limiter := usage.NewLimiter(usage.NewMemoryCounters())
	identities := identity.NewResolver(nil, "")
	prompts := prompt.NewEngine()
	validator := schema.NewValidator()
	repairer := schema.NewRepairer(validator, prompts, chain)

	return &pipelineEnv{
		service: NewService(identities, orgs, limiter, prompts, chain, repairer, order, false),
		chain:   chain,
		store:   store,
	}
}

func firstName(order []string) string {
	if len(order) == 0 {
		return "openai"
	}
	return order[0]
}

func pagePayload() *types.ContextPayload {
	return &types.ContextPayload{
		Source:      "extension",
		Platform:    "generic",
		PageType:    "article",
		VisibleText: "Widgets are great.",
		URL:         "https://example.com/widgets",
		Timestamp:   time.Now(),
	}
}

func execReq(orgID string) *types.ExecuteRequest {
	return &types.ExecuteRequest{
		Payload:  pagePayload(),
		Identity: &types.Identity{UserID: "alice", OrgID: orgID},
	}
}

func TestExecuteSuccess(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	env.store.configs["org-1"] = &types.OrgConfig{OrgID: "org-1", OrgName: "Org", Active: true}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq("org-1"))

	require.True(t, resp.Success)
	assert.Equal(t, "a page about widgets", resp.Data["summary"])

	meta := resp.ExecutionMetadata
	require.NotNil(t, meta)
	assert.Equal(t, "summarize_page", meta.ActionName)
	assert.Equal(t, types.ConfigSourceJSON, meta.OrgConfigSource)
	assert.Equal(t, types.IdentitySourceExtension, meta.IdentitySource)
	assert.Equal(t, "mock", meta.ProviderFinal)
	assert.False(t, meta.ProviderFallbackOccurred)
	assert.Positive(t, meta.TokensUsed)
}

func TestExecuteMissingPayload(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", &types.ExecuteRequest{})
	require.False(t, resp.Success)
	assert.NotNil(t, resp.ExecutionMetadata)
	assert.Nil(t, resp.ExecutionMetadata.Policy)
}

func TestExecuteUnknownAction(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))

	resp := env.service.Execute(context.Background(), "no_such_action", "req-1", "", execReq(""))
	require.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown action")
}

func TestExecuteBlockedAction(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	env.store.configs["org-1"] = &types.OrgConfig{
		OrgID:          "org-1",
		BlockedActions: []string{"summarize_page"},
		Active:         true,
	}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq("org-1"))

	require.False(t, resp.Success)
	require.NotNil(t, resp.ExecutionMetadata.Policy)
	assert.Equal(t, types.ReasonActionNotAllowed, resp.ExecutionMetadata.Policy.Reason)
}

func TestExecuteOrgDisabled(t *testing.T) {
	disabled := false
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	env.store.configs["org-1"] = &types.OrgConfig{OrgID: "org-1", Enabled: &disabled, Active: true}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq("org-1"))

	require.False(t, resp.Success)
	require.NotNil(t, resp.ExecutionMetadata.Policy)
	assert.Equal(t, types.ReasonOrgDisabled, resp.ExecutionMetadata.Policy.Reason)
}

func TestExecuteQuotaExhaustion(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	env.store.configs["org-1"] = &types.OrgConfig{
		OrgID:                 "org-1",
		MaxDailyActionsPerOrg: 1,
		Active:                true,
	}
	ctx := context.Background()

	first := env.service.Execute(ctx, "summarize_page", "req-1", "", execReq("org-1"))
	require.True(t, first.Success)

	second := env.service.Execute(ctx, "summarize_page", "req-2", "", execReq("org-1"))
	require.False(t, second.Success)
	require.NotNil(t, second.ExecutionMetadata.Policy)
	assert.Equal(t, types.ReasonOrgDailyLimitExceeded, second.ExecutionMetadata.Policy.Reason)
}

func TestExecuteDomainGate(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	env.store.configs["org-1"] = &types.OrgConfig{
		OrgID:          "org-1",
		AllowedDomains: []string{"allowed.edu"},
		Active:         true,
	}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq("org-1"))
	require.False(t, resp.Success)
	assert.Equal(t, types.ReasonDomainNotAllowed, resp.ExecutionMetadata.Policy.Reason)
}

func TestExecuteProviderFallback(t *testing.T) {
	failing := llm.NewFailingMockProvider("openai", fmt.Errorf("upstream down"))
	backup := llm.NewMockProvider("anthropic", validSummary)
	env := newPipelineEnv(t, failing, backup)
	env.store.configs["org-1"] = &types.OrgConfig{
		OrgID:            "org-1",
		ModelPreferences: types.ModelPreferences{DefaultProvider: "openai"},
		Active:           true,
	}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq("org-1"))

	require.True(t, resp.Success)
	meta := resp.ExecutionMetadata
	assert.Equal(t, "openai", meta.ProviderPrimary)
	assert.Equal(t, "anthropic", meta.ProviderFinal)
	assert.True(t, meta.ProviderFallbackOccurred)
	assert.Contains(t, meta.Warnings, string(WarningProviderFallbackUsed))
}

func TestExecuteAllProvidersFail(t *testing.T) {
	env := newPipelineEnv(t,
		llm.NewFailingMockProvider("openai", fmt.Errorf("down")),
		llm.NewFailingMockProvider("anthropic", fmt.Errorf("also down")),
	)

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq(""))

	require.False(t, resp.Success)
	assert.Equal(t, "AI providers are currently unavailable", resp.Error)
	assert.Nil(t, resp.ExecutionMetadata.Policy)
}

func TestExecuteDegradedOnInvalidOutput(t *testing.T) {
	// The mock returns the same invalid output for the repair call too,
	// so the pipeline must degrade rather than fail.
	invalid := `{"summary": "only a summary"}`
	env := newPipelineEnv(t, llm.NewMockProvider("mock", invalid))

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq(""))

	require.True(t, resp.Success)
	assert.Equal(t, "only a summary", resp.Data["summary"])
	assert.Contains(t, resp.ExecutionMetadata.Warnings, string(WarningValidationFailed))
}

func TestExecuteRepairTokensAreSummed(t *testing.T) {
	invalid := `{"summary": "only a summary"}`
	mock := llm.NewMockProvider("mock", invalid)
	env := newPipelineEnv(t, mock)

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq(""))

	require.True(t, resp.Success)
	// Two provider calls happened: the original and the single repair.
	calls := mock.Calls()
	require.Len(t, calls, 2)
	expected := 0
	for _, prompt := range calls {
		expected += len(prompt)/4 + len(invalid)/4
	}
	assert.Equal(t, expected, resp.ExecutionMetadata.TokensUsed)
}

func TestExecuteAnonymousIdentityWarning(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", &types.ExecuteRequest{
		Payload: pagePayload(),
	})

	require.True(t, resp.Success)
	meta := resp.ExecutionMetadata
	assert.Equal(t, types.IdentitySourceAnonymous, meta.IdentitySource)
	assert.Contains(t, meta.Warnings, string(WarningIdentityMissing))
	assert.Equal(t, types.ConfigSourceNone, meta.OrgConfigSource)
	assert.Contains(t, meta.Warnings, string(WarningOrgConfigMissing))
}

func TestExecuteDowngradesMissingPlatform(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	req := execReq("")
	req.Payload.Platform = ""
	req.Payload.PageType = ""

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", req)

	require.True(t, resp.Success)
	assert.Contains(t, resp.ExecutionMetadata.Warnings, string(WarningPlatformUnknown))
	assert.Contains(t, resp.ExecutionMetadata.Warnings, string(WarningPageTypeUnknown))
}

func TestExecuteFlagsMissingSourceAndTimestamp(t *testing.T) {
	env := newPipelineEnv(t, llm.NewMockProvider("mock", validSummary))
	req := execReq("")
	req.Payload.Source = ""
	req.Payload.Timestamp = time.Time{}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", req)

	require.True(t, resp.Success)
	assert.Contains(t, resp.ExecutionMetadata.Warnings, string(WarningSourceMissing))
	assert.Contains(t, resp.ExecutionMetadata.Warnings, string(WarningTimestampMissing))
	assert.Equal(t, "unknown", req.Payload.Source)
	assert.False(t, req.Payload.Timestamp.IsZero())

	// a fully stamped payload raises neither flag
	resp = env.service.Execute(context.Background(), "summarize_page", "req-2", "", execReq(""))
	require.True(t, resp.Success)
	assert.NotContains(t, resp.ExecutionMetadata.Warnings, string(WarningSourceMissing))
	assert.NotContains(t, resp.ExecutionMetadata.Warnings, string(WarningTimestampMissing))
}

func TestExecuteMaxTokensCappedByOrgLimit(t *testing.T) {
	mock := llm.NewMockProvider("mock", validSummary)
	env := newPipelineEnv(t, mock)
	env.store.configs["org-1"] = &types.OrgConfig{
		OrgID:  "org-1",
		Limits: types.OrgLimits{MaxTokensPerAction: 100},
		Active: true,
	}

	resp := env.service.Execute(context.Background(), "summarize_page", "req-1", "", execReq("org-1"))
	require.True(t, resp.Success)
}
