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

// Package orchestrator is the backend of the AxonFlow Assistant: it
// gates incoming actions against org policy and usage quotas, renders
// the action prompt, executes it through the provider fallback chain,
// validates the model output, and attributes every decision in
// per-request execution metadata.
package orchestrator
