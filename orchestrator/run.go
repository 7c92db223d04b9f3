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
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"axonflow/assistant/orchestrator/identity"
	"axonflow/assistant/orchestrator/llm"
	"axonflow/assistant/orchestrator/orgconfig"
	"axonflow/assistant/orchestrator/prompt"
	"axonflow/assistant/orchestrator/schema"
	"axonflow/assistant/orchestrator/usage"
)

// providerPriority is the fallback order after the org-preferred
// primary. Only registered providers participate.
var providerPriority = []string{"openai", "anthropic", "bedrock", "ollama", "mock"}

// Run starts the orchestrator HTTP service.
//
// Environment:
//   - PORT: listen port (default 8090)
//   - DATABASE_URL: Postgres for persisted org configs (optional)
//   - REDIS_URL: shared usage counters (optional, in-memory fallback)
//   - MOODLE_BASE_URL / MOODLE_API_TOKEN: remote config authority (optional)
//   - JWT_SECRET: extension bearer-token verification (optional)
//   - ADMIN_TOKEN: org admin API guard (optional)
//   - OPENAI_API_KEY, ANTHROPIC_API_KEY, BEDROCK_REGION, BEDROCK_MODEL,
//     OLLAMA_ENDPOINT, OLLAMA_MODEL: provider configuration
//   - USE_MOCK_LLM: register the deterministic mock provider (dev only)
func Run() {
	log.Println("Starting AxonFlow Assistant Orchestrator...")

	chain := buildProviderChain()

	var store orgconfig.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pg, err := orgconfig.NewPostgresStore(dbURL)
		if err != nil {
			log.Printf("Warning: org config store unavailable: %v", err)
		} else {
			store = pg
		}
	}

	moodleURL := os.Getenv("MOODLE_BASE_URL")
	moodle := orgconfig.NewMoodleClient(moodleURL, os.Getenv("MOODLE_API_TOKEN"))
	orgs := orgconfig.NewResolver(moodle, store,
		orgconfig.WithDefaultProvider(firstRegistered(chain)))

	var counters usage.CounterStore = usage.NewMemoryCounters()
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		rc, err := usage.NewRedisCounters(redisURL)
		if err != nil {
			log.Printf("Warning: Redis unavailable, using in-memory usage counters: %v", err)
		} else {
			counters = rc
			log.Printf("Usage counters: Redis")
		}
	}
	limiter := usage.NewLimiter(counters)

	identities := identity.NewResolver([]byte(os.Getenv("JWT_SECRET")), moodleURL)
	prompts := prompt.NewEngine()
	validator := schema.NewValidator()
	repairer := schema.NewRepairer(validator, prompts, chain)

	service := NewService(identities, orgs, limiter, prompts, chain, repairer,
		fallbackOrder(chain), moodleURL != "")

	handler := NewHandler(service, orgs, providerHealth(chain), os.Getenv("ADMIN_TOKEN"))

	scheduler := cron.New()
	mustSchedule(scheduler, "@every 1m", func() { orgs.Cache().Cleanup() })
	mustSchedule(scheduler, "@every 10m", func() { identities.Cleanup() })
	if mem, ok := counters.(*usage.MemoryCounters); ok {
		mustSchedule(scheduler, "@every 1h", func() { mem.Sweep() })
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := mux.NewRouter()
	handler.Register(r)
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}
	log.Printf("Orchestrator listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, c.Handler(r)))
}

func buildProviderChain() *llm.Chain {
	chain := llm.NewChain()

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		chain.Register(llm.NewOpenAIProvider(key, os.Getenv("OPENAI_MODEL")))
		log.Printf("Provider registered: openai")
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		chain.Register(llm.NewAnthropicProvider(key, os.Getenv("ANTHROPIC_MODEL")))
		log.Printf("Provider registered: anthropic")
	}
	if region, model := os.Getenv("BEDROCK_REGION"), os.Getenv("BEDROCK_MODEL"); region != "" || model != "" {
		bedrock, err := llm.NewBedrockProvider(region, model)
		if err != nil {
			log.Printf("Warning: Bedrock provider unavailable: %v", err)
		} else {
			chain.Register(bedrock)
			log.Printf("Provider registered: bedrock")
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		chain.Register(llm.NewOllamaProvider(endpoint, os.Getenv("OLLAMA_MODEL")))
		log.Printf("Provider registered: ollama")
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		chain.Register(llm.NewMockProvider("mock", `{"summary":"mock summary","key_points":["mock"]}`))
		log.Printf("Provider registered: mock (development mode)")
	}

	if len(chain.Providers()) == 0 {
		log.Printf("Warning: no LLM providers configured; all actions will fail")
	}
	return chain
}

// fallbackOrder returns the registered providers in priority order.
func fallbackOrder(chain *llm.Chain) []string {
	registered := make(map[string]bool)
	for _, name := range chain.Providers() {
		registered[name] = true
	}
	var order []string
	for _, name := range providerPriority {
		if registered[name] {
			order = append(order, name)
		}
	}
	return order
}

func firstRegistered(chain *llm.Chain) string {
	order := fallbackOrder(chain)
	if len(order) == 0 {
		return "openai"
	}
	return order[0]
}

func providerHealth(chain *llm.Chain) func() map[string]bool {
	return func() map[string]bool {
		states := make(map[string]bool)
		for _, name := range chain.Providers() {
			if p, ok := chain.Get(name); ok {
				states[name] = p.IsHealthy()
			}
		}
		return states
	}
}

func mustSchedule(scheduler *cron.Cron, spec string, job func()) {
	if _, err := scheduler.AddFunc(spec, job); err != nil {
		log.Fatalf("failed to schedule %s job: %v", spec, err)
	}
}
