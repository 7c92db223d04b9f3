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
	"time"

	"axonflow/assistant/shared/types"
)

// WarningEvent is a typed event recorded on execution metadata. The
// string values are the wire form the extension displays in its debug
// panel.
type WarningEvent string

const (
	WarningOrgConfigMissing     WarningEvent = "org_config_missing"
	WarningUsingDefaultConfig   WarningEvent = "using_default_config"
	WarningIdentityMissing      WarningEvent = "identity_missing"
	WarningUsingMockIdentity    WarningEvent = "using_mock_identity"
	WarningProviderFallbackUsed WarningEvent = "provider_fallback_used"
	WarningMoodleUnavailable    WarningEvent = "moodle_unavailable"
	WarningValidationFailed     WarningEvent = "validation_failed"
	WarningPlatformUnknown      WarningEvent = "platform_unknown"
	WarningPageTypeUnknown      WarningEvent = "page_type_unknown"
	WarningSourceMissing        WarningEvent = "source_missing"
	WarningTimestampMissing     WarningEvent = "timestamp_missing"
)

const unknownValue = "unknown"

// ContextBuilder accumulates execution attribution for one request and
// produces an immutable metadata record. One instance per request; not
// safe for concurrent use.
type ContextBuilder struct {
	actionName      string
	requestID       string
	orgConfigSource types.ConfigSource
	identitySource  types.IdentitySource
	providerPrimary string
	providerFinal   string
	modelPrimary    string
	modelFinal      string
	warnings        []string
	tokensUsed      int
	policy          *types.PolicyInfo
	start           time.Time
	built           bool
}

// NewContextBuilder starts accumulating metadata for one request.
func NewContextBuilder(actionName, requestID string) *ContextBuilder {
	return &ContextBuilder{
		actionName: actionName,
		requestID:  requestID,
		start:      time.Now(),
	}
}

// OrgConfigSource records which source resolved the org config.
func (b *ContextBuilder) OrgConfigSource(source types.ConfigSource) *ContextBuilder {
	b.orgConfigSource = source
	return b
}

// IdentitySource records which source produced the caller identity.
func (b *ContextBuilder) IdentitySource(source types.IdentitySource) *ContextBuilder {
	b.identitySource = source
	return b
}

// PrimaryProvider records the first provider/model the chain was asked
// to use.
func (b *ContextBuilder) PrimaryProvider(provider, model string) *ContextBuilder {
	b.providerPrimary = provider
	b.modelPrimary = model
	return b
}

// FinalProvider records the provider/model that actually served the
// request.
func (b *ContextBuilder) FinalProvider(provider, model string) *ContextBuilder {
	b.providerFinal = provider
	b.modelFinal = model
	return b
}

// Warn appends a typed warning event. Duplicate events collapse.
func (b *ContextBuilder) Warn(event WarningEvent) *ContextBuilder {
	for _, w := range b.warnings {
		if w == string(event) {
			return b
		}
	}
	b.warnings = append(b.warnings, string(event))
	return b
}

// AddTokens accumulates tokens spent across provider calls, including
// repair retries.
func (b *ContextBuilder) AddTokens(n int) *ContextBuilder {
	b.tokensUsed += n
	return b
}

// PolicyBlock records the policy rejection that terminated the request.
func (b *ContextBuilder) PolicyBlock(reason, message string) *ContextBuilder {
	b.policy = &types.PolicyInfo{Reason: reason, Message: message}
	return b
}

// Build finalizes the metadata record. Absent fields come out as
// "unknown" rather than empty so consumers never distinguish
// missing-from-unset. Build may be called once; later builder calls do
// not affect an already-built record.
func (b *ContextBuilder) Build() *types.ExecutionMetadata {
	b.built = true

	meta := &types.ExecutionMetadata{
		ActionName:      orUnknown(b.actionName),
		OrgConfigSource: b.orgConfigSource,
		IdentitySource:  b.identitySource,
		ProviderPrimary: orUnknown(b.providerPrimary),
		ProviderFinal:   orUnknown(b.providerFinal),
		ModelPrimary:    orUnknown(b.modelPrimary),
		ModelFinal:      orUnknown(b.modelFinal),
		Warnings:        append([]string(nil), b.warnings...),
		Duration:        time.Since(b.start),
		TokensUsed:      b.tokensUsed,
		Timestamp:       time.Now().UTC(),
		RequestID:       b.requestID,
		Policy:          b.policy,
	}
	if meta.OrgConfigSource == "" {
		meta.OrgConfigSource = types.ConfigSourceNone
	}
	if meta.IdentitySource == "" {
		meta.IdentitySource = types.IdentitySourceAnonymous
	}
	meta.ProviderFallbackOccurred = meta.ProviderFinal != unknownValue &&
		meta.ProviderPrimary != unknownValue &&
		meta.ProviderFinal != meta.ProviderPrimary
	return meta
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}
