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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"axonflow/assistant/shared/types"
)

// IdentityBridge supplies the caller identity from some client-side
// source. Bridges are best-effort; an error just moves the dispatcher to
// the next bridge.
type IdentityBridge interface {
	Resolve(ctx context.Context) (*types.Identity, error)
}

// ContextBridge reads identity injected into the page context by the
// host platform (the extension drops it into local storage; here it
// arrives via environment for the agent process).
type ContextBridge struct{}

func (ContextBridge) Resolve(ctx context.Context) (*types.Identity, error) {
	raw := os.Getenv("ASSISTANT_CONTEXT_IDENTITY")
	if raw == "" {
		return nil, fmt.Errorf("no context identity present")
	}
	var id types.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, fmt.Errorf("malformed context identity: %w", err)
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("context identity carries no user")
	}
	return &id, nil
}

// SessionBridge asks the local session endpoint (the Moodle plugin's
// whoami) for the signed-in user.
type SessionBridge struct {
	endpoint   string
	httpClient *http.Client
}

// NewSessionBridge creates a bridge against the session endpoint.
func NewSessionBridge(endpoint string) *SessionBridge {
	return &SessionBridge{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

func (b *SessionBridge) Resolve(ctx context.Context) (*types.Identity, error) {
	if b.endpoint == "" {
		return nil, fmt.Errorf("no session endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session endpoint returned status %d", resp.StatusCode)
	}
	var id types.Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("malformed session identity: %w", err)
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("no active session")
	}
	return &id, nil
}

// IntelligenceFetcher supplies page-level context (account notes, CRM
// intelligence) to enrich backend requests. Always best-effort.
type IntelligenceFetcher interface {
	Fetch(ctx context.Context, payload *types.ContextPayload) (map[string]any, error)
}

// HTTPIntelligenceFetcher pulls intelligence from a simple JSON
// endpoint.
type HTTPIntelligenceFetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPIntelligenceFetcher creates a fetcher against baseURL; empty
// disables it.
func NewHTTPIntelligenceFetcher(baseURL string) *HTTPIntelligenceFetcher {
	return &HTTPIntelligenceFetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

func (f *HTTPIntelligenceFetcher) Fetch(ctx context.Context, payload *types.ContextPayload) (map[string]any, error) {
	if f.baseURL == "" {
		return nil, fmt.Errorf("no intelligence endpoint configured")
	}
	endpoint := fmt.Sprintf("%s/intelligence?platform=%s&pagetype=%s",
		f.baseURL, url.QueryEscape(payload.Platform), url.QueryEscape(payload.PageType))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("intelligence endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("intelligence endpoint returned status %d", resp.StatusCode)
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("malformed intelligence response: %w", err)
	}
	return data, nil
}
