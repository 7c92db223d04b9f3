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

import "axonflow/assistant/shared/types"

// sampleConfigs is the built-in fallback used when neither the Moodle
// authority nor the persisted store knows the org. The demo entries let
// local development run without any backing services.
func sampleConfigs() map[string]*types.OrgConfig {
	return map[string]*types.OrgConfig{
		"demo-org": {
			OrgID:    "demo-org",
			OrgName:  "Demo Organization",
			PlanTier: types.PlanTierPilot,
			ModelPreferences: types.ModelPreferences{
				DefaultProvider: "openai",
			},
			ToneProfile:  "professional",
			FeatureFlags: map[string]bool{"history": true},
			Limits: types.OrgLimits{
				MaxActionsPerPage: 10,
			},
			MaxDailyActionsPerOrg:  500,
			MaxDailyActionsPerUser: 50,
			Active:                 true,
		},
		"acme-university": {
			OrgID:    "acme-university",
			OrgName:  "Acme University",
			PlanTier: types.PlanTierEnterprise,
			ModelPreferences: types.ModelPreferences{
				DefaultProvider: "anthropic",
				PerAction: map[string]types.ModelPreference{
					"analyze_opportunity_risk": {Provider: "openai", Model: "gpt-4o"},
				},
			},
			ToneProfile:  "academic",
			FeatureFlags: map[string]bool{"history": true, "intelligence": true},
			Active:       true,
		},
	}
}
