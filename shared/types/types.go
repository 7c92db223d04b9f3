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

package types

import (
	"time"
)

// PlanTier identifies the commercial tier of an organization.
type PlanTier string

// Supported plan tiers. The set is closed: config updates carrying any
// other value are rejected.
const (
	PlanTierFree       PlanTier = "free"
	PlanTierPilot      PlanTier = "pilot"
	PlanTierEnterprise PlanTier = "enterprise"
	PlanTierCustom     PlanTier = "custom"
)

// ValidPlanTier reports whether t is one of the closed set of tiers.
func ValidPlanTier(t PlanTier) bool {
	switch t {
	case PlanTierFree, PlanTierPilot, PlanTierEnterprise, PlanTierCustom:
		return true
	}
	return false
}

// ConfigSource identifies which backing system satisfied an org-config
// resolution request.
type ConfigSource string

const (
	// ConfigSourceMoodle means the remote Moodle authority answered.
	ConfigSourceMoodle ConfigSource = "moodle"

	// ConfigSourceJSON means a persisted or built-in sample entry answered.
	ConfigSourceJSON ConfigSource = "json"

	// ConfigSourceDefault means a hardcoded default was used.
	ConfigSourceDefault ConfigSource = "default"

	// ConfigSourceNone means no source produced a config.
	ConfigSourceNone ConfigSource = "none"
)

// IdentitySource identifies which system produced the caller identity.
type IdentitySource string

const (
	IdentitySourceMoodle    IdentitySource = "moodle"
	IdentitySourceMock      IdentitySource = "mock"
	IdentitySourceAnonymous IdentitySource = "anonymous"
	IdentitySourceExtension IdentitySource = "extension"
)

// FallbackStrategy controls how the dispatcher degrades when the backend
// cannot serve an action.
type FallbackStrategy string

const (
	// FallbackBackendThenStub tries the backend first and falls through to
	// the local stub handler on transient failure. This is the default.
	FallbackBackendThenStub FallbackStrategy = "backend-then-stub"

	// FallbackBackendOnly propagates backend failures without stubbing.
	FallbackBackendOnly FallbackStrategy = "backend-only"

	// FallbackStubOnly never contacts the backend.
	FallbackStubOnly FallbackStrategy = "stub-only"
)

// Policy reason codes returned when an action is rejected by organizational
// configuration or quota. These strings are a stable contract; the extension
// maps them to user-facing copy.
const (
	ReasonOrgDisabled            = "org_disabled"
	ReasonExtensionDisabled      = "extension_disabled"
	ReasonDomainNotAllowed       = "domain_not_allowed"
	ReasonOrgDailyLimitExceeded  = "org_daily_limit_exceeded"
	ReasonUserDailyLimitExceeded = "user_daily_limit_exceeded"
	ReasonActionNotAllowed       = "action_not_allowed"
)

// ContextPayload is the structured page capture the extension submits with
// every action. Source, Platform, PageType and Timestamp are required;
// missing Platform/PageType downgrade to "unknown" with a warning rather
// than failing the dispatch.
type ContextPayload struct {
	Source               string            `json:"source"`
	Platform             string            `json:"platform"`
	PageType             string            `json:"page_type"`
	Fields               map[string]string `json:"fields,omitempty"`
	VisibleText          string            `json:"visible_text,omitempty"`
	ExtractionConfidence float64           `json:"extraction_confidence,omitempty"`
	RequiredMissing      []string          `json:"required_missing,omitempty"`
	URL                  string            `json:"url,omitempty"`
	Title                string            `json:"title,omitempty"`
	Timestamp            time.Time         `json:"timestamp"`
}

// Identity is the verified (or anonymous) caller identity. A nil *Identity
// means anonymous.
type Identity struct {
	UserID   string   `json:"user_id"`
	OrgID    string   `json:"org_id"`
	Roles    []string `json:"roles,omitempty"`
	PlanTier PlanTier `json:"plan_tier,omitempty"`
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ModelPreference selects a provider/model pair for a specific action.
type ModelPreference struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// ModelPreferences describes an organization's provider routing choices.
type ModelPreferences struct {
	DefaultProvider string                     `json:"default_provider,omitempty"`
	PerAction       map[string]ModelPreference `json:"per_action,omitempty"`
}

// OrgLimits bounds how much an organization may use the pipeline.
// Zero values mean "no limit configured".
type OrgLimits struct {
	MaxActionsPerPage    int `json:"max_actions_per_page,omitempty"`
	MaxActionsPerSession int `json:"max_actions_per_session,omitempty"`
	MaxTokensPerAction   int `json:"max_tokens_per_action,omitempty"`
}

// OrgConfig is the organization policy record resolved per request.
// Lifecycle: created via the admin API or fetched from the Moodle authority;
// soft-deleted (Active=false) rather than purged, and restorable.
type OrgConfig struct {
	OrgID            string            `json:"org_id"`
	OrgName          string            `json:"org_name"`
	PlanTier         PlanTier          `json:"plan_tier"`
	AllowedActions   []string          `json:"allowed_actions,omitempty"`
	BlockedActions   []string          `json:"blocked_actions,omitempty"`
	ModelPreferences ModelPreferences  `json:"model_preferences"`
	ToneProfile      string            `json:"tone_profile,omitempty"`
	FeatureFlags     map[string]bool   `json:"feature_flags,omitempty"`
	Limits           OrgLimits         `json:"limits"`

	// Enabled / BrowserExtensionEnabled are pointers so "not configured"
	// (nil, treated as enabled) is distinct from an explicit false.
	Enabled                 *bool    `json:"enabled,omitempty"`
	BrowserExtensionEnabled *bool    `json:"browser_extension_enabled,omitempty"`
	MaxDailyActionsPerOrg   int      `json:"max_daily_actions_per_org,omitempty"`
	MaxDailyActionsPerUser  int      `json:"max_daily_actions_per_user,omitempty"`
	AllowedDomains          []string `json:"allowed_domains,omitempty"`

	Active bool `json:"active"`
}

// Usage tracks token usage for an LLM call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// PolicyInfo carries the reason an execution was rejected by policy.
type PolicyInfo struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// ExecutionMetadata is the per-request attribution record built by the
// orchestrator. It reveals exactly which code path served the request and
// is immutable once returned. Absent string fields are "unknown", never
// empty-by-accident.
type ExecutionMetadata struct {
	ActionName               string         `json:"action_name"`
	OrgConfigSource          ConfigSource   `json:"org_config_source"`
	IdentitySource           IdentitySource `json:"identity_source"`
	ProviderPrimary          string         `json:"provider_primary"`
	ProviderFinal            string         `json:"provider_final"`
	ModelPrimary             string         `json:"model_primary"`
	ModelFinal               string         `json:"model_final"`
	ProviderFallbackOccurred bool           `json:"provider_fallback_occurred"`
	Warnings                 []string       `json:"warnings,omitempty"`
	Duration                 time.Duration  `json:"duration"`
	TokensUsed               int            `json:"tokens_used"`
	Timestamp                time.Time      `json:"timestamp"`
	RequestID                string         `json:"request_id"`
	Policy                   *PolicyInfo    `json:"policy,omitempty"`
}

// ExecuteRequest is the body of POST /api/v1/actions/{action}/execute.
type ExecuteRequest struct {
	Payload      *ContextPayload `json:"payload"`
	Intelligence map[string]any  `json:"intelligence,omitempty"`
	Identity     *Identity       `json:"identity,omitempty"`
}

// ExecuteResponse is the orchestrator's answer to an execute request.
type ExecuteResponse struct {
	Success           bool               `json:"success"`
	Data              map[string]any     `json:"data,omitempty"`
	Error             string             `json:"error,omitempty"`
	ExecutionMetadata *ExecutionMetadata `json:"execution_metadata,omitempty"`
}

// ActionResult is what the agent-side dispatcher hands back to the caller.
type ActionResult struct {
	Success      bool               `json:"success"`
	Data         map[string]any     `json:"data,omitempty"`
	Error        string             `json:"error,omitempty"`
	Details      string             `json:"details,omitempty"`
	PolicyBlock  bool               `json:"policy_block,omitempty"`
	PolicyReason string             `json:"policy_reason,omitempty"`
	Source       string             `json:"source,omitempty"` // "backend" or "stub"
	Metadata     *ExecutionMetadata `json:"metadata,omitempty"`
}

// MenuEntry describes an action available for a given page context.
type MenuEntry struct {
	ID               string           `json:"id"`
	Label            string           `json:"label"`
	Description      string           `json:"description,omitempty"`
	Platforms        []string         `json:"platforms"`
	PageTypes        []string         `json:"page_types"`
	UseBackend       bool             `json:"use_backend"`
	FallbackStrategy FallbackStrategy `json:"fallback_strategy"`
}
