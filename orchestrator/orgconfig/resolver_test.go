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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/assistant/shared/types"
)

type fakeStore struct {
	configs map[string]*types.OrgConfig
	getErr  error
	upserts []*types.OrgConfig
}

func newFakeStore() *fakeStore {
	return &fakeStore{configs: make(map[string]*types.OrgConfig)}
}

func (s *fakeStore) Get(ctx context.Context, orgID string) (*types.OrgConfig, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.configs[orgID], nil
}

func (s *fakeStore) Upsert(ctx context.Context, cfg *types.OrgConfig) error {
	s.configs[cfg.OrgID] = cfg
	s.upserts = append(s.upserts, cfg)
	return nil
}

func (s *fakeStore) SoftDelete(ctx context.Context, orgID string) error {
	cfg, ok := s.configs[orgID]
	if !ok {
		return fmt.Errorf("org config %s not found", orgID)
	}
	cfg.Active = false
	return nil
}

func (s *fakeStore) Restore(ctx context.Context, orgID string) error {
	cfg, ok := s.configs[orgID]
	if !ok {
		return fmt.Errorf("org config %s not found", orgID)
	}
	cfg.Active = true
	return nil
}

func (s *fakeStore) List(ctx context.Context, includeInactive bool) ([]*types.OrgConfig, error) {
	var out []*types.OrgConfig
	for _, cfg := range s.configs {
		if cfg.Active || includeInactive {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func moodleServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/config", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestResolveFromMoodle(t *testing.T) {
	server := moodleServer(t, http.StatusOK, `{
		"success": true,
		"data": {
			"orgid": "org-1",
			"name": "Org One",
			"plan_tier": "enterprise",
			"allowed_actions": ["summarize_page"],
			"model_preferences": {"default_provider": "anthropic"},
			"tone_profile": "formal",
			"feature_flags": {"history": true},
			"limits": {"max_actions_per_page": 5},
			"enabled": true,
			"browser_extension_enabled": true,
			"max_daily_actions_per_org": 100,
			"allowed_domains": ["example.edu"]
		}
	}`)
	defer server.Close()

	r := NewResolver(NewMoodleClient(server.URL, "token"), newFakeStore())
	cfg, source := r.Resolve(context.Background(), "org-1")

	require.NotNil(t, cfg)
	assert.Equal(t, types.ConfigSourceMoodle, source)
	assert.Equal(t, "Org One", cfg.OrgName)
	assert.Equal(t, types.PlanTierEnterprise, cfg.PlanTier)
	assert.Equal(t, "anthropic", cfg.ModelPreferences.DefaultProvider)
	assert.Equal(t, 5, cfg.Limits.MaxActionsPerPage)
	assert.Equal(t, []string{"example.edu"}, cfg.AllowedDomains)
}

func TestResolveMoodleResultIsCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"success":true,"data":{"orgid":"org-1","name":"Org One","plan_tier":"free"}}`))
	}))
	defer server.Close()

	r := NewResolver(NewMoodleClient(server.URL, ""), nil)
	r.Resolve(context.Background(), "org-1")
	r.Resolve(context.Background(), "org-1")

	assert.Equal(t, 1, calls)
}

func TestResolveFallsBackToStoreOnMoodleError(t *testing.T) {
	server := moodleServer(t, http.StatusInternalServerError, `oops`)
	defer server.Close()

	store := newFakeStore()
	store.configs["org-2"] = &types.OrgConfig{OrgID: "org-2", OrgName: "Org Two", Active: true}

	r := NewResolver(NewMoodleClient(server.URL, ""), store)
	cfg, source := r.Resolve(context.Background(), "org-2")

	require.NotNil(t, cfg)
	assert.Equal(t, types.ConfigSourceJSON, source)
	assert.Equal(t, "Org Two", cfg.OrgName)
}

func TestResolveSkipsSoftDeletedStoreEntries(t *testing.T) {
	store := newFakeStore()
	store.configs["org-3"] = &types.OrgConfig{OrgID: "org-3", OrgName: "Gone", Active: false}

	r := NewResolver(nil, store)
	cfg, source := r.Resolve(context.Background(), "org-3")

	assert.Nil(t, cfg)
	assert.Equal(t, types.ConfigSourceNone, source)
}

func TestResolveFallsBackToSamples(t *testing.T) {
	r := NewResolver(nil, newFakeStore())
	cfg, source := r.Resolve(context.Background(), "demo-org")

	require.NotNil(t, cfg)
	assert.Equal(t, types.ConfigSourceJSON, source)
	assert.Equal(t, "Demo Organization", cfg.OrgName)
}

func TestResolveUnknownOrg(t *testing.T) {
	r := NewResolver(nil, newFakeStore())
	cfg, source := r.Resolve(context.Background(), "nobody")

	assert.Nil(t, cfg)
	assert.Equal(t, types.ConfigSourceNone, source)
}

func TestResolveEmptyOrgID(t *testing.T) {
	r := NewResolver(nil, nil)
	cfg, source := r.Resolve(context.Background(), "")

	assert.Nil(t, cfg)
	assert.Equal(t, types.ConfigSourceNone, source)
}

func TestIsActionAllowed(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *types.OrgConfig
		actionID string
		want     bool
	}{
		{"nil config default-allows", nil, "anything", true},
		{"no lists default-allows", &types.OrgConfig{}, "anything", true},
		{
			"blocked list wins over allowed list",
			&types.OrgConfig{AllowedActions: []string{"a"}, BlockedActions: []string{"a"}},
			"a", false,
		},
		{
			"allowed list is exclusive",
			&types.OrgConfig{AllowedActions: []string{"a", "b"}},
			"c", false,
		},
		{
			"allowed list admits members",
			&types.OrgConfig{AllowedActions: []string{"a", "b"}},
			"b", true,
		},
		{
			"blocked list rejects without allowed list",
			&types.OrgConfig{BlockedActions: []string{"x"}},
			"x", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActionAllowed(tt.cfg, tt.actionID))
		})
	}
}

func TestEffectiveModelPreferences(t *testing.T) {
	r := NewResolver(nil, nil, WithDefaultProvider("openai"))

	cfg := &types.OrgConfig{
		ModelPreferences: types.ModelPreferences{
			DefaultProvider: "anthropic",
			PerAction: map[string]types.ModelPreference{
				"analyze_opportunity_risk": {Provider: "bedrock", Model: "anthropic.claude-3-5-sonnet-20240620-v1:0"},
			},
		},
	}

	perAction := r.EffectiveModelPreferences(cfg, "analyze_opportunity_risk")
	assert.Equal(t, "bedrock", perAction.Provider)

	orgDefault := r.EffectiveModelPreferences(cfg, "summarize_page")
	assert.Equal(t, "anthropic", orgDefault.Provider)

	global := r.EffectiveModelPreferences(nil, "summarize_page")
	assert.Equal(t, "openai", global.Provider)
}

func TestUpdateValidation(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(nil, store)

	invalid := &types.OrgConfig{OrgID: "org-4"}
	err := r.Update(context.Background(), invalid)
	require.Error(t, err)
	assert.Empty(t, store.upserts, "invalid update must not mutate state")

	valid := &types.OrgConfig{
		OrgID:            "org-4",
		OrgName:          "Org Four",
		PlanTier:         types.PlanTierFree,
		AllowedActions:   []string{},
		ModelPreferences: types.ModelPreferences{DefaultProvider: "openai"},
		ToneProfile:      "neutral",
		FeatureFlags:     map[string]bool{},
	}
	require.NoError(t, r.Update(context.Background(), valid))
	require.Len(t, store.upserts, 1)
	assert.True(t, store.upserts[0].Active)
}

func TestUpdateRejectsUnknownPlanTier(t *testing.T) {
	r := NewResolver(nil, newFakeStore())
	cfg := &types.OrgConfig{
		OrgID:            "org-5",
		OrgName:          "Org Five",
		PlanTier:         "platinum",
		AllowedActions:   []string{},
		ModelPreferences: types.ModelPreferences{DefaultProvider: "openai"},
		ToneProfile:      "neutral",
		FeatureFlags:     map[string]bool{},
	}
	err := r.Update(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan tier")
}

func TestSoftDeleteAndRestore(t *testing.T) {
	store := newFakeStore()
	store.configs["org-6"] = &types.OrgConfig{OrgID: "org-6", OrgName: "Org Six", Active: true}
	r := NewResolver(nil, store)

	require.NoError(t, r.Delete(context.Background(), "org-6"))
	cfg, source := r.Resolve(context.Background(), "org-6")
	assert.Nil(t, cfg)
	assert.Equal(t, types.ConfigSourceNone, source)

	require.NoError(t, r.Restore(context.Background(), "org-6"))
	cfg, source = r.Resolve(context.Background(), "org-6")
	require.NotNil(t, cfg)
	assert.Equal(t, types.ConfigSourceJSON, source)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	body := `{"success":true,"data":{"orgid":"org-7","name":"Stale Name","plan_tier":"free"}}`
	server := moodleServer(t, http.StatusOK, body)

	store := newFakeStore()
	r := NewResolver(NewMoodleClient(server.URL, ""), store)

	cfg, _ := r.Resolve(context.Background(), "org-7")
	require.Equal(t, "Stale Name", cfg.OrgName)
	server.Close()

	fresh := &types.OrgConfig{
		OrgID:            "org-7",
		OrgName:          "Fresh Name",
		PlanTier:         types.PlanTierFree,
		AllowedActions:   []string{},
		ModelPreferences: types.ModelPreferences{DefaultProvider: "openai"},
		ToneProfile:      "neutral",
		FeatureFlags:     map[string]bool{},
	}
	require.NoError(t, r.Update(context.Background(), fresh))

	cfg, source := r.Resolve(context.Background(), "org-7")
	require.NotNil(t, cfg)
	assert.Equal(t, types.ConfigSourceJSON, source)
	assert.Equal(t, "Fresh Name", cfg.OrgName)
}
