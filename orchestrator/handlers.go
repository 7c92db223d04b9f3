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

package orchestrator

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"axonflow/assistant/orchestrator/orgconfig"
	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

// Handler carries the HTTP surface of the orchestrator.
type Handler struct {
	service    *Service
	orgs       *orgconfig.Resolver
	providers  func() map[string]bool // name -> healthy
	adminToken string
	log        *logger.Logger
}

// NewHandler creates the HTTP handler set. providers reports the
// registered provider names and their health. adminToken guards the org
// admin API; empty means unguarded (local development).
func NewHandler(service *Service, orgs *orgconfig.Resolver, providers func() map[string]bool, adminToken string) *Handler {
	return &Handler{
		service:    service,
		orgs:       orgs,
		providers:  providers,
		adminToken: adminToken,
		log:        logger.New("http"),
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// HandleExecute serves POST /api/v1/actions/{action}/execute. Policy
// rejections are HTTP 200 with success=false and a reason code in the
// execution metadata; only malformed requests get a 4xx.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	actionID := mux.Vars(r)["action"]
	reqID := requestID(r)

	var req types.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp := h.service.Execute(r.Context(), actionID, reqID, bearerToken(r), &req)
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth serves GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := false
	providerStates := h.providers()
	for _, ok := range providerStates {
		if ok {
			healthy = true
			break
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "assistant-orchestrator",
		"providers": providerStates,
	})
}

// HandleMetrics serves the legacy JSON metrics at GET /metrics. The
// Prometheus exposition lives at /prometheus.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.metrics.snapshot())
}

// HandleProviderStatus serves GET /api/v1/providers/status.
func (h *Handler) HandleProviderStatus(w http.ResponseWriter, r *http.Request) {
	states := h.providers()
	out := make([]map[string]interface{}, 0, len(states))
	for name, healthy := range states {
		out = append(out, map[string]interface{}{
			"provider": name,
			"healthy":  healthy,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"providers": out,
	})
}

// HandleUsageStatus serves GET /api/v1/usage/status?orgid=X&userid=Y.
func (h *Handler) HandleUsageStatus(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("orgid")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "orgid query parameter is required")
		return
	}
	userID := r.URL.Query().Get("userid")

	orgCount, userCount := h.service.Status(r.Context(), orgID, userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"org_id":     orgID,
		"org_count":  orgCount,
		"user_count": userCount,
		"date":       "today",
	})
}

// requireAdmin guards the org admin API with a static bearer token.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken != "" && bearerToken(r) != h.adminToken {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		next(w, r)
	}
}

// HandleOrgUpsert serves POST /api/v1/orgs and PUT /api/v1/orgs/{id}.
func (h *Handler) HandleOrgUpsert(w http.ResponseWriter, r *http.Request) {
	var cfg types.OrgConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if id := mux.Vars(r)["id"]; id != "" {
		cfg.OrgID = id
	}

	if err := h.orgs.Update(r.Context(), &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"org_id":  cfg.OrgID,
	})
}

// HandleOrgGet serves GET /api/v1/orgs/{id}.
func (h *Handler) HandleOrgGet(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	cfg, source := h.orgs.Resolve(r.Context(), orgID)
	if cfg == nil {
		writeError(w, http.StatusNotFound, "org config not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"source":  source,
		"config":  cfg,
	})
}

// HandleOrgDelete serves DELETE /api/v1/orgs/{id} (soft delete).
func (h *Handler) HandleOrgDelete(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if err := h.orgs.Delete(r.Context(), orgID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleOrgRestore serves POST /api/v1/orgs/{id}/restore.
func (h *Handler) HandleOrgRestore(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["id"]
	if err := h.orgs.Restore(r.Context(), orgID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.HandleFunc("/metrics", h.HandleMetrics).Methods("GET")

	r.HandleFunc("/api/v1/actions/{action}/execute", h.HandleExecute).Methods("POST")
	r.HandleFunc("/api/v1/providers/status", h.HandleProviderStatus).Methods("GET")
	r.HandleFunc("/api/v1/usage/status", h.HandleUsageStatus).Methods("GET")

	r.HandleFunc("/api/v1/orgs", h.requireAdmin(h.HandleOrgUpsert)).Methods("POST")
	r.HandleFunc("/api/v1/orgs/{id}", h.requireAdmin(h.HandleOrgGet)).Methods("GET")
	r.HandleFunc("/api/v1/orgs/{id}", h.requireAdmin(h.HandleOrgUpsert)).Methods("PUT")
	r.HandleFunc("/api/v1/orgs/{id}", h.requireAdmin(h.HandleOrgDelete)).Methods("DELETE")
	r.HandleFunc("/api/v1/orgs/{id}/restore", h.requireAdmin(h.HandleOrgRestore)).Methods("POST")
}
