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

/*
Command agent runs the assistant Agent service.

The Agent is the client-side dispatcher: it serves the local message API
for the browser extension and Moodle plugin, routes actions to the
Orchestrator, and degrades to local stub implementations when the
backend is unreachable.

# Usage

	agent [flags]

# Environment Variables

Optional:
  - AGENT_PORT: HTTP server port (default: 8091)
  - ORCHESTRATOR_URL: URL to the Orchestrator service
  - ORCHESTRATOR_TOKEN: bearer token for Orchestrator calls
  - ACTION_MANIFEST: path to a YAML action manifest
  - SESSION_ENDPOINT: session identity endpoint
  - INTELLIGENCE_URL: org intelligence endpoint

Without ORCHESTRATOR_URL every action runs on its stub.

# Example

	export ORCHESTRATOR_URL="http://localhost:8090"
	./agent
*/
package main
