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

// OllamaProvider implements Provider against a self-hosted Ollama endpoint.
// Local inference can be slow, so the HTTP timeout is generous.
type OllamaProvider struct {
	endpoint     string
	defaultModel string
	client       *http.Client
}

// NewOllamaProvider creates an Ollama provider. Empty arguments fall back
// to the conventional in-cluster endpoint and llama3.1.
func NewOllamaProvider(endpoint, model string) *OllamaProvider {
	if endpoint == "" {
		endpoint = "http://ollama:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaProvider{
		endpoint:     endpoint,
		defaultModel: model,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) IsHealthy() bool {
	return p.endpoint != ""
}

func (p *OllamaProvider) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	start := time.Now()

	model := options.Model
	if model == "" {
		model = p.defaultModel
	}

	fullPrompt := prompt
	if options.SystemPrompt != "" {
		fullPrompt = options.SystemPrompt + "\n\n" + prompt
	}

	ollamaReq := map[string]interface{}{
		"model":  model,
		"prompt": fullPrompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": options.Temperature,
			"num_predict": options.MaxTokens,
		},
	}

	reqBody, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/api/generate", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Code: ErrCodeUnavailable, Message: "request failed", Cause: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{
			Provider:   "ollama",
			Code:       codeForStatus(resp.StatusCode),
			Message:    fmt.Sprintf("unexpected status: %.200s", string(body)),
			StatusCode: resp.StatusCode,
		}
	}

	var ollamaResp struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, &ProviderError{Provider: "ollama", Code: ErrCodeBadResponse, Message: "malformed response body", Cause: err}
	}

	return &Response{
		Content: ollamaResp.Response,
		Model:   model,
		Usage: types.Usage{
			PromptTokens:     ollamaResp.PromptEvalCount,
			CompletionTokens: ollamaResp.EvalCount,
			TotalTokens:      ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
		},
		ResponseTime: time.Since(start),
		Metadata:     map[string]any{"provider": "ollama"},
	}, nil
}
