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

// Package agent is the client-side action dispatcher of the AxonFlow
// Assistant. It owns the action registry, decides per action whether to
// call the orchestrator backend or a local stub, bridges identity and
// org intelligence into backend requests, and records a history entry
// for every successful execution.
//
// The dispatcher's failure model: policy rejections from the backend
// are terminal; transient backend failures fall through to the local
// stub unless the action is backend-only; when both paths fail the
// caller sees one generic message with the internal error preserved in
// a diagnostic field.
package agent
