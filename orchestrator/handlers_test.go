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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/assistant/orchestrator/llm"
	"axonflow/assistant/shared/types"
)

func newTestHandler(t *testing.T, providers ...llm.Provider) (*Handler, *pipelineEnv) {
	t.Helper()
	env := newPipelineEnv(t, providers...)
	orgs := env.service.orgs
	h := NewHandler(env.service, orgs, providerHealth(env.chain), "admin-secret")
	return h, env
}

func doRequest(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleExecute(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	body, _ := json.Marshal(execReq(""))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/summarize_page/execute", bytes.NewReader(body))
	req.Header.Set("X-Request-ID", "req-42")
	rec := doRequest(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "req-42", resp.ExecutionMetadata.RequestID)
}

func TestHandleExecuteBadBody(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/summarize_page/execute", bytes.NewReader([]byte("{")))
	rec := doRequest(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExecutePolicyBlockIsHTTP200(t *testing.T) {
	h, env := newTestHandler(t, llm.NewMockProvider("mock", validSummary))
	env.store.configs["org-1"] = &types.OrgConfig{
		OrgID:          "org-1",
		BlockedActions: []string{"summarize_page"},
		Active:         true,
	}

	body, _ := json.Marshal(execReq("org-1"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/summarize_page/execute", bytes.NewReader(body))
	rec := doRequest(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.ExecutionMetadata.Policy)
	assert.Equal(t, types.ReasonActionNotAllowed, resp.ExecutionMetadata.Policy.Reason)
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleHealthDegradedWithoutProviders(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleProviderStatus(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/api/v1/providers/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success   bool `json:"success"`
		Providers []struct {
			Provider string `json:"provider"`
			Healthy  bool   `json:"healthy"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "mock", body.Providers[0].Provider)
	assert.True(t, body.Providers[0].Healthy)
}

func TestHandleUsageStatus(t *testing.T) {
	h, env := newTestHandler(t, llm.NewMockProvider("mock", validSummary))
	env.service.Execute(httptest.NewRequest(http.MethodGet, "/", nil).Context(),
		"summarize_page", "req-1", "", execReq("org-1"))

	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status?orgid=org-1&userid=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["org_count"])
	assert.EqualValues(t, 1, body["user_count"])
}

func TestHandleUsageStatusRequiresOrgID(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))
	rec := doRequest(h, httptest.NewRequest(http.MethodGet, "/api/v1/usage/status", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func validOrgBody(t *testing.T, orgID string) []byte {
	t.Helper()
	body, err := json.Marshal(&types.OrgConfig{
		OrgID:            orgID,
		OrgName:          "Test Org",
		PlanTier:         types.PlanTierPilot,
		AllowedActions:   []string{},
		ModelPreferences: types.ModelPreferences{DefaultProvider: "mock"},
		ToneProfile:      "neutral",
		FeatureFlags:     map[string]bool{},
	})
	require.NoError(t, err)
	return body
}

func TestOrgAdminRequiresToken(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orgs", bytes.NewReader(validOrgBody(t, "org-9")))
	rec := doRequest(h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrgAdminCRUD(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	create := httptest.NewRequest(http.MethodPost, "/api/v1/orgs", bytes.NewReader(validOrgBody(t, "org-9")))
	create.Header.Set("Authorization", "Bearer admin-secret")
	rec := doRequest(h, create)
	require.Equal(t, http.StatusOK, rec.Code)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/orgs/org-9", nil)
	get.Header.Set("Authorization", "Bearer admin-secret")
	rec = doRequest(h, get)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Success bool             `json:"success"`
		Config  *types.OrgConfig `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Test Org", got.Config.OrgName)

	del := httptest.NewRequest(http.MethodDelete, "/api/v1/orgs/org-9", nil)
	del.Header.Set("Authorization", "Bearer admin-secret")
	rec = doRequest(h, del)
	require.Equal(t, http.StatusOK, rec.Code)

	// Soft-deleted orgs no longer resolve.
	get2 := httptest.NewRequest(http.MethodGet, "/api/v1/orgs/org-9", nil)
	get2.Header.Set("Authorization", "Bearer admin-secret")
	rec = doRequest(h, get2)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	restore := httptest.NewRequest(http.MethodPost, "/api/v1/orgs/org-9/restore", nil)
	restore.Header.Set("Authorization", "Bearer admin-secret")
	rec = doRequest(h, restore)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, get)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrgAdminRejectsInvalidConfig(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockProvider("mock", validSummary))

	body, _ := json.Marshal(map[string]string{"org_id": "org-9"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orgs", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer admin-secret")
	rec := doRequest(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
