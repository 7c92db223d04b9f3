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

// Package llm implements the provider orchestration layer of the action
// pipeline. A Chain executes a rendered prompt against an ordered list of
// LLM providers (OpenAI, Anthropic, AWS Bedrock, Ollama, or a mock),
// advancing to the next provider on failure and recording an attempt for
// every try so execution metadata can attribute the final answer.
package llm
