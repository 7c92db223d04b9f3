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

// Package main is the entry point for the assistant Agent service.
//
// The Agent is the client-side action dispatcher that:
// - Serves the local message API for the browser extension and Moodle plugin
// - Routes actions to the Orchestrator or local stub implementations
// - Resolves caller identity from the page context or session
// - Records per-entity action history
//
// Usage:
//
//	./agent
//
// Environment Variables:
//
//	AGENT_PORT - HTTP server port (default: 8091)
//	ORCHESTRATOR_URL - URL of the Orchestrator service
//	ORCHESTRATOR_TOKEN - bearer token for Orchestrator calls
//	ACTION_MANIFEST - path to the YAML action manifest (optional)
//	SESSION_ENDPOINT - session identity endpoint (optional)
//	INTELLIGENCE_URL - org intelligence endpoint (optional)
package main

import (
	"fmt"
	"os"

	"axonflow/assistant/agent"
)

func main() {
	if err := agent.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
