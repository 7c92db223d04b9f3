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

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidOutput(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`{
		"risk_level": "high",
		"risk_score": 82,
		"factors": ["late stage", "no champion"],
		"recommendation": "escalate"
	}`, "opportunity_risk")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "high", result.Data["risk_level"])
}

func TestValidateStripsMarkdownFences(t *testing.T) {
	v := NewValidator()
	raw := "```json\n{\"risk_level\": \"low\", \"risk_score\": 10, \"factors\": []}\n```"
	result := v.Validate(raw, "opportunity_risk")
	assert.True(t, result.Valid)
}

func TestValidateMissingRequiredField(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`{"risk_level": "low", "factors": []}`, "opportunity_risk")

	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "risk_score")
	// Parsed data is still returned for degraded success.
	assert.Equal(t, "low", result.Data["risk_level"])
}

func TestValidateEnumViolation(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`{"risk_level": "extreme", "risk_score": 99, "factors": []}`, "opportunity_risk")

	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "must be one of")
}

func TestValidateKindMismatch(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`{"risk_level": "low", "risk_score": "eighty", "factors": []}`, "opportunity_risk")

	require.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "must be a number")
}

func TestValidateNotJSON(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`I think the risk is low.`, "opportunity_risk")

	require.False(t, result.Valid)
	assert.Nil(t, result.Data)
	assert.Contains(t, result.Errors[0], "not a JSON object")
}

func TestValidateUnknownSchema(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`{"a": 1}`, "no_such_schema")

	require.False(t, result.Valid)
	assert.NotNil(t, result.Data)
	assert.Contains(t, result.Errors[0], "unknown schema")
}

func TestValidateOptionalFieldAbsent(t *testing.T) {
	v := NewValidator()
	result := v.Validate(`{"risk_level": "medium", "risk_score": 50, "factors": ["x"]}`, "opportunity_risk")
	assert.True(t, result.Valid)
}
