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

package prompt

type builtinTemplate struct {
	text   string
	params ModelParams
}

// builtinTemplates returns the compiled-in action templates. Deployments
// can override or extend these via Register.
func builtinTemplates() map[string]builtinTemplate {
	return map[string]builtinTemplate{
		"analyze_opportunity_risk": {
			text: `Analyze the sales opportunity below and assess its risk.
{{if .ToneProfile}}Respond in a {{.ToneProfile}} tone.{{end}}

Opportunity fields:
{{range $k, $v := .Fields}}- {{$k}}: {{$v}}
{{end}}
{{if .Intelligence}}Organization context:
{{range $k, $v := .Intelligence}}- {{$k}}: {{$v}}
{{end}}{{end}}
Return JSON with fields: risk_level (low|medium|high), risk_score (0-100), factors (array of strings), recommendation (string).`,
			params: ModelParams{
				Provider:     "openai",
				MaxTokens:    800,
				Temperature:  0.2,
				SystemPrompt: "You are a sales analyst. Answer only with valid JSON.",
				RetryPrompt:  "Your previous answer was not valid JSON matching the requested schema. Produce only the corrected JSON object, nothing else.",
				SchemaID:     "opportunity_risk",
			},
		},
		"summarize_page": {
			text: `Summarize the following page for a busy professional.
{{if .ToneProfile}}Respond in a {{.ToneProfile}} tone.{{end}}
{{if .Payload}}Page title: {{.Payload.Title}}
Platform: {{.Payload.Platform}} ({{.Payload.PageType}}){{end}}

Page text:
{{.VisibleText}}

Return JSON with fields: summary (string), key_points (array of strings).`,
			params: ModelParams{
				Provider:     "openai",
				MaxTokens:    500,
				Temperature:  0.3,
				SystemPrompt: "You summarize web pages. Answer only with valid JSON.",
				RetryPrompt:  "Your previous answer was not valid JSON matching the requested schema. Produce only the corrected JSON object, nothing else.",
				SchemaID:     "page_summary",
			},
		},
		"extract_fields": {
			text: `Extract the structured data from this page.
{{if .Payload}}Platform: {{.Payload.Platform}} ({{.Payload.PageType}}){{end}}

Captured fields:
{{range $k, $v := .Fields}}- {{$k}}: {{$v}}
{{end}}
Page text:
{{.VisibleText}}

Return JSON with fields: fields (object mapping field names to values), confidence (number 0-1).`,
			params: ModelParams{
				Provider:     "openai",
				MaxTokens:    600,
				Temperature:  0,
				SystemPrompt: "You extract structured data from pages. Answer only with valid JSON.",
				SchemaID:     "field_extraction",
			},
		},
	}
}
