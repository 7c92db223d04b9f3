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

// Package orgconfig resolves per-organization policy configuration.
//
// Resolution cascades through three sources and short-circuits on the
// first hit: the remote Moodle authority, the persisted Postgres store,
// and a built-in sample map. Each resolved config reports which source
// produced it so execution metadata can attribute the decision. Moodle
// responses are cached with a short TTL to keep the authority off the
// hot path.
package orgconfig
