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

// Package main is the entry point for the assistant Orchestrator service.
//
// The Orchestrator is the server-side execution service that:
// - Resolves org configuration and caller identity
// - Enforces per-org and per-user usage limits
// - Routes prompts across LLM providers with ordered fallback
// - Validates structured outputs with a single repair retry
//
// Usage:
//
//	./orchestrator
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8090)
//	DATABASE_URL - PostgreSQL connection string (optional)
//	REDIS_URL - Redis connection string (optional)
//	MOODLE_BASE_URL - Moodle config authority base URL (optional)
//	JWT_SECRET - secret for extension JWT validation
//	OPENAI_API_KEY - OpenAI API key (optional)
//	ANTHROPIC_API_KEY - Anthropic API key (optional)
//	BEDROCK_REGION - AWS Bedrock region (optional)
//	OLLAMA_ENDPOINT - Ollama endpoint URL (optional)
package main

import (
	"axonflow/assistant/orchestrator"
)

func main() {
	orchestrator.Run()
}
