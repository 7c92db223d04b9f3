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

// Package identity resolves the caller identity for an execute request.
//
// Sources are tried in order: a signed bearer token issued to the
// extension, Moodle session introspection, a mock identity for local
// development, and finally anonymous. Identity resolution never fails a
// request; every error degrades to the next source and ultimately to
// anonymous, with the chosen source recorded in execution metadata.
package identity
