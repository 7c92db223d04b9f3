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
	"fmt"
	"strconv"
	"strings"

	"axonflow/assistant/shared/types"
)

// defaultActions is the compiled-in action set. A YAML manifest can
// override labels and routing flags; the stub implementations are always
// these.
func defaultActions() []*ActionDefinition {
	return []*ActionDefinition{
		{
			ID:               "analyze_opportunity_risk",
			Label:            "Analyze Risk",
			Description:      "Assess the risk of this sales opportunity",
			Platforms:        []string{"salesforce"},
			PageTypes:        []string{"opportunity"},
			UseBackend:       true,
			FallbackStrategy: types.FallbackBackendThenStub,
			Stub:             stubOpportunityRisk,
		},
		{
			ID:               "summarize_page",
			Label:            "Summarize Page",
			Description:      "Summarize the visible page content",
			Platforms:        []string{"any"},
			PageTypes:        []string{"any"},
			UseBackend:       true,
			FallbackStrategy: types.FallbackBackendThenStub,
			Stub:             stubSummarizePage,
		},
		{
			ID:               "extract_fields",
			Label:            "Extract Fields",
			Description:      "Extract structured fields from the page",
			Platforms:        []string{"any"},
			PageTypes:        []string{"any"},
			UseBackend:       true,
			FallbackStrategy: types.FallbackBackendThenStub,
			Stub:             stubExtractFields,
		},
	}
}

// stubOpportunityRisk scores risk from the captured opportunity fields
// without any model call. The heuristics are coarse; the point is a
// usable answer when the backend is down.
func stubOpportunityRisk(ctx context.Context, payload *types.ContextPayload) (map[string]any, error) {
	score := 30
	var factors []string

	if amountStr, ok := payload.Fields["amount"]; ok {
		if amount, err := strconv.ParseFloat(strings.ReplaceAll(amountStr, ",", ""), 64); err == nil && amount >= 100000 {
			score += 20
			factors = append(factors, "high deal value")
		}
	}
	stage := strings.ToLower(payload.Fields["stage"])
	switch {
	case strings.Contains(stage, "closed"):
		score = 5
		factors = append(factors, "opportunity already closed")
	case strings.Contains(stage, "negotiation"):
		score += 15
		factors = append(factors, "late stage negotiation")
	}
	if len(payload.RequiredMissing) > 0 {
		score += 10 * len(payload.RequiredMissing)
		factors = append(factors, fmt.Sprintf("%d required fields missing", len(payload.RequiredMissing)))
	}
	if score > 100 {
		score = 100
	}

	level := "low"
	switch {
	case score >= 70:
		level = "high"
	case score >= 40:
		level = "medium"
	}
	if len(factors) == 0 {
		factors = append(factors, "no notable risk signals captured")
	}

	return map[string]any{
		"risk_level":     level,
		"risk_score":     score,
		"factors":        factors,
		"recommendation": "review with your team; offline heuristic result",
	}, nil
}

func stubSummarizePage(ctx context.Context, payload *types.ContextPayload) (map[string]any, error) {
	text := strings.TrimSpace(payload.VisibleText)
	if text == "" {
		return nil, fmt.Errorf("page has no visible text to summarize")
	}
	const maxLen = 280
	summary := text
	if len(summary) > maxLen {
		cut := strings.LastIndex(summary[:maxLen], " ")
		if cut <= 0 {
			cut = maxLen
		}
		summary = summary[:cut] + "…"
	}
	return map[string]any{
		"summary":    summary,
		"key_points": []string{},
	}, nil
}

func stubExtractFields(ctx context.Context, payload *types.ContextPayload) (map[string]any, error) {
	if len(payload.Fields) == 0 {
		return nil, fmt.Errorf("no fields captured on this page")
	}
	fields := make(map[string]any, len(payload.Fields))
	for k, v := range payload.Fields {
		fields[k] = v
	}
	confidence := payload.ExtractionConfidence
	if confidence == 0 {
		confidence = 0.5
	}
	return map[string]any{
		"fields":     fields,
		"confidence": confidence,
	}, nil
}
