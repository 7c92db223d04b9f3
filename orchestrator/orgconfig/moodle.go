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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"axonflow/assistant/shared/types"
)

const moodleFetchTimeout = 5 * time.Second

// MoodleClient fetches org configuration from the remote Moodle authority.
// Any failure (network, non-200, malformed body) means "source unavailable"
// and the resolver continues down the cascade; it is never fatal.
type MoodleClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewMoodleClient creates a client for the authority at baseURL. An empty
// baseURL disables the client; Fetch will report unavailable.
func NewMoodleClient(baseURL, token string) *MoodleClient {
	return &MoodleClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: moodleFetchTimeout,
		},
	}
}

// Configured reports whether a base URL was provided.
func (c *MoodleClient) Configured() bool {
	return c.baseURL != ""
}

// moodleConfigResponse mirrors the authority's wire format.
type moodleConfigResponse struct {
	Success bool             `json:"success"`
	Data    moodleConfigData `json:"data"`
}

type moodleConfigData struct {
	OrgID            string          `json:"orgid"`
	Name             string          `json:"name"`
	PlanTier         string          `json:"plan_tier"`
	AllowedActions   []string        `json:"allowed_actions"`
	BlockedActions   []string        `json:"blocked_actions"`
	ModelPreferences json.RawMessage `json:"model_preferences"`
	ToneProfile      string          `json:"tone_profile"`
	FeatureFlags     map[string]bool `json:"feature_flags"`
	Limits           *moodleLimits   `json:"limits"`

	Enabled                 *bool    `json:"enabled"`
	BrowserExtensionEnabled *bool    `json:"browser_extension_enabled"`
	MaxDailyActionsPerOrg   int      `json:"max_daily_actions_per_org"`
	MaxDailyActionsPerUser  int      `json:"max_daily_actions_per_user"`
	AllowedDomains          []string `json:"allowed_domains"`
}

type moodleLimits struct {
	MaxActionsPerPage    int `json:"max_actions_per_page"`
	MaxActionsPerSession int `json:"max_actions_per_session"`
	MaxTokensPerAction   int `json:"max_tokens_per_action"`
}

// Fetch retrieves the config for orgID from the authority.
func (c *MoodleClient) Fetch(ctx context.Context, orgID string) (*types.OrgConfig, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("moodle authority not configured")
	}

	endpoint := fmt.Sprintf("%s/config?orgid=%s", c.baseURL, url.QueryEscape(orgID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build moodle request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moodle authority unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moodle authority returned status %d", resp.StatusCode)
	}

	var wire moodleConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("malformed moodle response: %w", err)
	}
	if !wire.Success || wire.Data.OrgID == "" {
		return nil, fmt.Errorf("moodle authority has no config for org %s", orgID)
	}

	return wire.Data.toOrgConfig(), nil
}

func (d *moodleConfigData) toOrgConfig() *types.OrgConfig {
	cfg := &types.OrgConfig{
		OrgID:                   d.OrgID,
		OrgName:                 d.Name,
		PlanTier:                types.PlanTier(d.PlanTier),
		AllowedActions:          d.AllowedActions,
		BlockedActions:          d.BlockedActions,
		ToneProfile:             d.ToneProfile,
		FeatureFlags:            d.FeatureFlags,
		Enabled:                 d.Enabled,
		BrowserExtensionEnabled: d.BrowserExtensionEnabled,
		MaxDailyActionsPerOrg:   d.MaxDailyActionsPerOrg,
		MaxDailyActionsPerUser:  d.MaxDailyActionsPerUser,
		AllowedDomains:          d.AllowedDomains,
		Active:                  true,
	}
	if d.Limits != nil {
		cfg.Limits = types.OrgLimits{
			MaxActionsPerPage:    d.Limits.MaxActionsPerPage,
			MaxActionsPerSession: d.Limits.MaxActionsPerSession,
			MaxTokensPerAction:   d.Limits.MaxTokensPerAction,
		}
	}
	if len(d.ModelPreferences) > 0 {
		// The authority has shipped model_preferences both as a plain
		// provider string and as a structured object. Accept either.
		var structured types.ModelPreferences
		if err := json.Unmarshal(d.ModelPreferences, &structured); err == nil {
			cfg.ModelPreferences = structured
		} else {
			var provider string
			if err := json.Unmarshal(d.ModelPreferences, &provider); err == nil {
				cfg.ModelPreferences = types.ModelPreferences{DefaultProvider: provider}
			}
		}
	}
	return cfg
}
