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

package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

type runRequest struct {
	ActionID string                `json:"action_id"`
	Payload  *types.ContextPayload `json:"payload"`
}

type availableResponse struct {
	ActionID  string `json:"action_id"`
	Available bool   `json:"available"`
}

// AgentHandler serves the local message API the browser extension and
// Moodle plugin talk to.
type AgentHandler struct {
	registry   *Registry
	dispatcher *Dispatcher
	history    HistoryStore
	log        *logger.Logger
}

// NewAgentHandler wires the message API over a dispatcher.
func NewAgentHandler(registry *Registry, dispatcher *Dispatcher, history HistoryStore) *AgentHandler {
	return &AgentHandler{
		registry:   registry,
		dispatcher: dispatcher,
		history:    history,
		log:        logger.New("agent-api"),
	}
}

// Register attaches the agent routes to the router.
func (h *AgentHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HandleHealth).Methods("GET")
	r.HandleFunc("/api/v1/actions/run", h.HandleRun).Methods("POST")
	r.HandleFunc("/api/v1/actions/menu", h.HandleMenu).Methods("POST")
	r.HandleFunc("/api/v1/actions/available", h.HandleAvailable).Methods("POST")
	r.HandleFunc("/api/v1/history", h.HandleHistory).Methods("GET")
}

func (h *AgentHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeAgentJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "assistant-agent",
		"loaded":  h.registry.Loaded(),
	})
}

func (h *AgentHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAgentJSON(w, http.StatusBadRequest, types.ActionResult{
			Success: false,
			Error:   "malformed request body",
			Source:  "agent",
		})
		return
	}
	if req.ActionID == "" {
		writeAgentJSON(w, http.StatusBadRequest, types.ActionResult{
			Success: false,
			Error:   "action_id is required",
			Source:  "agent",
		})
		return
	}

	start := time.Now()
	result := h.dispatcher.Run(r.Context(), req.ActionID, req.Payload)
	h.log.InfoWithDuration("", "", "action dispatched",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"action":  req.ActionID,
			"success": result.Success,
			"source":  result.Source,
		})

	// Dispatch outcomes ride HTTP 200; the result body carries the
	// verdict so callers handle one shape.
	writeAgentJSON(w, http.StatusOK, result)
}

func (h *AgentHandler) HandleMenu(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAgentJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	entries := h.registry.Menu(req.Payload)
	writeAgentJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *AgentHandler) HandleAvailable(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAgentJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	writeAgentJSON(w, http.StatusOK, availableResponse{
		ActionID:  req.ActionID,
		Available: h.registry.IsAvailable(req.ActionID, req.Payload),
	})
}

func (h *AgentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		writeAgentJSON(w, http.StatusBadRequest, map[string]string{"error": "entity query parameter is required"})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.history.List(r.Context(), entity, limit)
	if err != nil {
		writeAgentJSON(w, http.StatusInternalServerError, map[string]string{"error": "history lookup failed"})
		return
	}
	writeAgentJSON(w, http.StatusOK, map[string]interface{}{
		"entity":  entity,
		"entries": entries,
		"count":   len(entries),
	})
}

func writeAgentJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Run starts the agent's local HTTP service. It blocks until the
// listener fails.
func Run() error {
	log := logger.New("agent")

	port := os.Getenv("AGENT_PORT")
	if port == "" {
		port = "8091"
	}

	registry, err := LoadRegistry(os.Getenv("ACTION_MANIFEST"))
	if err != nil {
		return fmt.Errorf("loading action manifest: %w", err)
	}

	backend := NewBackendClient(os.Getenv("ORCHESTRATOR_URL"), os.Getenv("ORCHESTRATOR_TOKEN"))

	bridges := []IdentityBridge{ContextBridge{}}
	if endpoint := os.Getenv("SESSION_ENDPOINT"); endpoint != "" {
		bridges = append(bridges, NewSessionBridge(endpoint))
	}

	history := NewMemoryHistory()
	opts := []DispatcherOption{
		WithIdentityBridges(bridges...),
		WithHistory(history),
	}
	if intelURL := os.Getenv("INTELLIGENCE_URL"); intelURL != "" {
		opts = append(opts, WithIntelligence(NewHTTPIntelligenceFetcher(intelURL)))
	}

	dispatcher := NewDispatcher(registry, backend, opts...)
	handler := NewAgentHandler(registry, dispatcher, history)

	router := mux.NewRouter()
	handler.Register(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
	})

	log.Info("", "", "agent listening", map[string]interface{}{
		"port":    port,
		"backend": backend.Configured(),
	})
	return http.ListenAndServe(":"+port, c.Handler(router))
}
