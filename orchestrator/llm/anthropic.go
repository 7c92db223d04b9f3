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

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"axonflow/assistant/shared/types"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion      = "2023-06-01"
)

// AnthropicProvider implements Provider against the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey       string
	endpoint     string
	defaultModel string
	client       *http.Client
}

// NewAnthropicProvider creates an Anthropic provider. An empty model
// defaults to claude-3-5-sonnet-20241022.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicProvider{
		apiKey:       apiKey,
		endpoint:     defaultAnthropicEndpoint,
		defaultModel: model,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// SetEndpoint overrides the API endpoint. Used for tests and proxies.
func (p *AnthropicProvider) SetEndpoint(endpoint string) {
	p.endpoint = endpoint
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) IsHealthy() bool {
	return p.apiKey != ""
}

func (p *AnthropicProvider) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	start := time.Now()

	model := options.Model
	if model == "" {
		model = p.defaultModel
	}

	anthropicReq := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  options.MaxTokens,
		"temperature": options.Temperature,
	}
	if options.SystemPrompt != "" {
		anthropicReq["system"] = options.SystemPrompt
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "anthropic", Code: ErrCodeUnavailable, Message: "request failed", Cause: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Provider:   "anthropic",
			Code:       codeForStatus(resp.StatusCode),
			Message:    fmt.Sprintf("unexpected status: %.200s", string(body)),
			StatusCode: resp.StatusCode,
		}
	}

	var anthropicResp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return nil, &ProviderError{Provider: "anthropic", Code: ErrCodeBadResponse, Message: "malformed response body", Cause: err}
	}

	content := ""
	if len(anthropicResp.Content) > 0 {
		content = anthropicResp.Content[0].Text
	}

	return &Response{
		Content: content,
		Model:   model,
		Usage: types.Usage{
			PromptTokens:     anthropicResp.Usage.InputTokens,
			CompletionTokens: anthropicResp.Usage.OutputTokens,
			TotalTokens:      anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
		},
		ResponseTime: time.Since(start),
		Metadata:     map[string]any{"provider": "anthropic"},
	}, nil
}
