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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"axonflow/assistant/shared/types"
)

// bedrockClient is the subset of the Bedrock runtime client the provider
// uses. Narrowed to an interface so tests can stub InvokeModel.
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider implements Provider for AWS Bedrock using AWS SDK v2,
// authenticating with AWS Signature V4 via IAM roles.
type BedrockProvider struct {
	client       bedrockClient
	region       string
	defaultModel string
}

// NewBedrockProvider creates a Bedrock provider. Returns an error if AWS
// config loading fails; callers should handle this rather than silently
// degrading.
func NewBedrockProvider(region, model string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", region, err)
	}

	log.Printf("[Bedrock] Initialized AWS SDK provider (region: %s, model: %s)", region, model)
	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		region:       region,
		defaultModel: model,
	}, nil
}

func (p *BedrockProvider) Name() string {
	return "bedrock"
}

func (p *BedrockProvider) IsHealthy() bool {
	return p.client != nil
}

func (p *BedrockProvider) Query(ctx context.Context, prompt string, options QueryOptions) (*Response, error) {
	start := time.Now()

	model := options.Model
	if model == "" {
		model = p.defaultModel
	}

	requestBody, err := p.buildRequestBody(prompt, options, model)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, &ProviderError{Provider: "bedrock", Code: ErrCodeUnavailable, Message: "InvokeModel failed", Cause: err}
	}

	response, err := p.parseResponseBody(output.Body, model)
	if err != nil {
		return nil, &ProviderError{Provider: "bedrock", Code: ErrCodeBadResponse, Message: "malformed response body", Cause: err}
	}

	response.Model = model
	response.ResponseTime = time.Since(start)
	response.Metadata = map[string]any{"provider": "bedrock", "region": p.region}
	return response, nil
}

// buildRequestBody builds the request body based on model family.
func (p *BedrockProvider) buildRequestBody(prompt string, options QueryOptions, model string) (map[string]interface{}, error) {
	switch detectBedrockModelFamily(model) {
	case "anthropic":
		messages := []map[string]string{
			{"role": "user", "content": prompt},
		}
		body := map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        options.MaxTokens,
			"temperature":       options.Temperature,
			"messages":          messages,
		}
		if options.SystemPrompt != "" {
			body["system"] = options.SystemPrompt
		}
		return body, nil
	case "amazon":
		return map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": options.MaxTokens,
				"temperature":   options.Temperature,
				"topP":          0.9,
			},
		}, nil
	case "meta":
		return map[string]interface{}{
			"prompt":      prompt,
			"max_gen_len": options.MaxTokens,
			"temperature": options.Temperature,
			"top_p":       0.9,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported Bedrock model family for model %q", model)
	}
}

// parseResponseBody parses the response based on model family.
func (p *BedrockProvider) parseResponseBody(body []byte, model string) (*Response, error) {
	switch detectBedrockModelFamily(model) {
	case "anthropic":
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		content := ""
		if len(resp.Content) > 0 {
			content = resp.Content[0].Text
		}
		return &Response{
			Content: content,
			Usage: types.Usage{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			},
		}, nil
	case "amazon":
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
				TokenCount int    `json:"tokenCount"`
			} `json:"results"`
			InputTextTokenCount int `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		content := ""
		completion := 0
		if len(resp.Results) > 0 {
			content = resp.Results[0].OutputText
			completion = resp.Results[0].TokenCount
		}
		return &Response{
			Content: content,
			Usage: types.Usage{
				PromptTokens:     resp.InputTextTokenCount,
				CompletionTokens: completion,
				TotalTokens:      resp.InputTextTokenCount + completion,
			},
		}, nil
	case "meta":
		var resp struct {
			Generation           string `json:"generation"`
			PromptTokenCount     int    `json:"prompt_token_count"`
			GenerationTokenCount int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		return &Response{
			Content: resp.Generation,
			Usage: types.Usage{
				PromptTokens:     resp.PromptTokenCount,
				CompletionTokens: resp.GenerationTokenCount,
				TotalTokens:      resp.PromptTokenCount + resp.GenerationTokenCount,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported Bedrock model family for model %q", model)
	}
}

// detectBedrockModelFamily determines the request/response format from the
// Bedrock model identifier prefix.
func detectBedrockModelFamily(model string) string {
	switch {
	case strings.HasPrefix(model, "anthropic."):
		return "anthropic"
	case strings.HasPrefix(model, "amazon."):
		return "amazon"
	case strings.HasPrefix(model, "meta."):
		return "meta"
	default:
		return "unknown"
	}
}
