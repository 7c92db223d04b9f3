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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"axonflow/assistant/shared/types"
)

// BackendClient calls the orchestrator's execute endpoint.
type BackendClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewBackendClient creates a client for the orchestrator at baseURL.
// token is the caller's bearer token and may be empty.
func NewBackendClient(baseURL, token string) *BackendClient {
	return &BackendClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configured reports whether a backend URL was provided.
func (c *BackendClient) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Execute runs actionID on the orchestrator. A non-2xx status or a
// transport error is a transient failure; a decoded response with
// success=false and a policy reason is a policy rejection the dispatcher
// must treat as terminal.
func (c *BackendClient) Execute(ctx context.Context, actionID string, req *types.ExecuteRequest) (*types.ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/actions/%s/execute", c.baseURL, actionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var execResp types.ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
		return nil, fmt.Errorf("malformed backend response: %w", err)
	}
	return &execResp, nil
}
