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

package orgconfig

import (
	"context"
	"fmt"
	"time"

	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

// Resolver cascades through config sources in priority order: Moodle
// authority, persisted store, built-in samples. The first source to
// produce a config wins; source failures log and continue, they never
// fail the request.
type Resolver struct {
	moodle  *MoodleClient
	store   Store
	samples map[string]*types.OrgConfig
	cache   *Cache
	log     *logger.Logger

	// DefaultProvider is the global fallback when neither a per-action
	// preference nor an org default provider is configured.
	DefaultProvider string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL overrides the Moodle-result cache TTL.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = NewCache(ttl)
	}
}

// WithDefaultProvider sets the global default LLM provider.
func WithDefaultProvider(provider string) ResolverOption {
	return func(r *Resolver) {
		r.DefaultProvider = provider
	}
}

// NewResolver creates a resolver. moodle and store may be nil, in which
// case those cascade steps are skipped.
func NewResolver(moodle *MoodleClient, store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		moodle:          moodle,
		store:           store,
		samples:         sampleConfigs(),
		cache:           NewCache(30 * time.Second),
		log:             logger.New("orgconfig"),
		DefaultProvider: "openai",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache exposes the Moodle-result cache so the orchestrator can schedule
// periodic cleanup.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns the effective config for orgID and the source that
// produced it. A nil config with ConfigSourceNone means no source knew
// the org.
func (r *Resolver) Resolve(ctx context.Context, orgID string) (*types.OrgConfig, types.ConfigSource) {
	if orgID == "" {
		return nil, types.ConfigSourceNone
	}

	if cfg, ok := r.cache.Get(orgID); ok {
		return cfg, types.ConfigSourceMoodle
	}

	if r.moodle != nil && r.moodle.Configured() {
		cfg, err := r.moodle.Fetch(ctx, orgID)
		if err == nil {
			r.cache.Set(orgID, cfg)
			return cfg, types.ConfigSourceMoodle
		}
		r.log.Warn(orgID, "", "moodle authority unavailable, continuing cascade", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if r.store != nil {
		cfg, err := r.store.Get(ctx, orgID)
		if err != nil {
			r.log.Warn(orgID, "", "org config store lookup failed, continuing cascade", map[string]interface{}{
				"error": err.Error(),
			})
		} else if cfg != nil && cfg.Active {
			return cfg, types.ConfigSourceJSON
		}
	}

	if cfg, ok := r.samples[orgID]; ok {
		return cfg, types.ConfigSourceJSON
	}

	return nil, types.ConfigSourceNone
}

// IsActionAllowed applies the org's action policy: the blocked list wins
// over everything; otherwise a non-empty allowed list is exclusive;
// otherwise default-allow. A nil config allows everything.
func IsActionAllowed(cfg *types.OrgConfig, actionID string) bool {
	if cfg == nil {
		return true
	}
	for _, blocked := range cfg.BlockedActions {
		if blocked == actionID {
			return false
		}
	}
	if len(cfg.AllowedActions) > 0 {
		for _, allowed := range cfg.AllowedActions {
			if allowed == actionID {
				return true
			}
		}
		return false
	}
	return true
}

// EffectiveModelPreferences selects the provider/model for actionID:
// per-action override, then org default provider, then the resolver's
// global default.
func (r *Resolver) EffectiveModelPreferences(cfg *types.OrgConfig, actionID string) types.ModelPreference {
	if cfg != nil {
		if pref, ok := cfg.ModelPreferences.PerAction[actionID]; ok && pref.Provider != "" {
			return pref
		}
		if cfg.ModelPreferences.DefaultProvider != "" {
			return types.ModelPreference{Provider: cfg.ModelPreferences.DefaultProvider}
		}
	}
	return types.ModelPreference{Provider: r.DefaultProvider}
}

// ValidateUpdate checks an incoming config against the required-field set
// and the closed plan-tier enum. Field names in errors use the wire form
// the admin API accepts.
func ValidateUpdate(cfg *types.OrgConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	var missing []string
	if cfg.OrgID == "" {
		missing = append(missing, "orgId")
	}
	if cfg.OrgName == "" {
		missing = append(missing, "orgName")
	}
	if cfg.PlanTier == "" {
		missing = append(missing, "planTier")
	}
	if cfg.AllowedActions == nil {
		missing = append(missing, "allowedActions")
	}
	if cfg.ModelPreferences.DefaultProvider == "" && len(cfg.ModelPreferences.PerAction) == 0 {
		missing = append(missing, "modelPreferences")
	}
	if cfg.ToneProfile == "" {
		missing = append(missing, "toneProfile")
	}
	if cfg.FeatureFlags == nil {
		missing = append(missing, "featureFlags")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %v", missing)
	}

	if !types.ValidPlanTier(cfg.PlanTier) {
		return fmt.Errorf("invalid plan tier %q", cfg.PlanTier)
	}
	return nil
}

// Update validates and persists cfg, then invalidates any cached entry so
// the next resolve observes the new state. Invalid updates mutate nothing.
func (r *Resolver) Update(ctx context.Context, cfg *types.OrgConfig) error {
	if err := ValidateUpdate(cfg); err != nil {
		return err
	}
	if r.store == nil {
		return fmt.Errorf("no persisted store configured")
	}
	cfg.Active = true
	if err := r.store.Upsert(ctx, cfg); err != nil {
		return err
	}
	r.cache.Invalidate(cfg.OrgID)
	return nil
}

// Delete soft-deletes the org's persisted config.
func (r *Resolver) Delete(ctx context.Context, orgID string) error {
	if r.store == nil {
		return fmt.Errorf("no persisted store configured")
	}
	if err := r.store.SoftDelete(ctx, orgID); err != nil {
		return err
	}
	r.cache.Invalidate(orgID)
	return nil
}

// Restore reactivates a soft-deleted persisted config.
func (r *Resolver) Restore(ctx context.Context, orgID string) error {
	if r.store == nil {
		return fmt.Errorf("no persisted store configured")
	}
	if err := r.store.Restore(ctx, orgID); err != nil {
		return err
	}
	r.cache.Invalidate(orgID)
	return nil
}
