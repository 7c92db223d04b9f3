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

// Package usage enforces per-organization and per-user daily action
// quotas plus the org-level gates (org disabled, extension disabled,
// domain allowlist).
//
// Counters are date-bucketed: a counter whose bucket differs from today
// is simply absent, so quotas reset at midnight without any scheduled
// job. Counts live in Redis when available (shared across orchestrator
// replicas) and in a mutex-guarded in-process map otherwise. Redis
// failures fail open; blocking every org because the counter store
// blinked is worse than briefly exceeding a quota.
package usage
