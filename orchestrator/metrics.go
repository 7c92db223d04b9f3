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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_assistant_actions_total",
			Help: "Total number of actions processed by the orchestrator",
		},
		[]string{"action", "status"},
	)
	promActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "axonflow_assistant_action_duration_milliseconds",
			Help:    "Action execution duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"action"},
	)
	promPolicyBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_assistant_policy_blocks_total",
			Help: "Total number of actions rejected by org policy or quota",
		},
		[]string{"reason"},
	)
	promLLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_assistant_llm_calls_total",
			Help: "Total number of LLM provider calls",
		},
		[]string{"provider", "status"},
	)
	promProviderFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "axonflow_assistant_provider_fallbacks_total",
			Help: "Total number of requests served by a non-primary provider",
		},
	)
	promSchemaRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_assistant_schema_repairs_total",
			Help: "Total number of schema repair retries",
		},
		[]string{"outcome"},
	)
	promTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonflow_assistant_tokens_used_total",
			Help: "Total LLM tokens consumed",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(promActionsTotal)
	prometheus.MustRegister(promActionDuration)
	prometheus.MustRegister(promPolicyBlocks)
	prometheus.MustRegister(promLLMCalls)
	prometheus.MustRegister(promProviderFallbacks)
	prometheus.MustRegister(promSchemaRepairs)
	prometheus.MustRegister(promTokensUsed)
}

// serviceMetrics keeps the coarse in-process counters the JSON /metrics
// endpoint reports alongside the native Prometheus exposition.
type serviceMetrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	totalRequests   int64
	successRequests int64
	failedRequests  int64
	blockedRequests int64
	latenciesMS     []int64
}

func newServiceMetrics() *serviceMetrics {
	return &serviceMetrics{startTime: time.Now()}
}

func (m *serviceMetrics) record(status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	switch status {
	case "success":
		m.successRequests++
	case "blocked":
		m.blockedRequests++
	default:
		m.failedRequests++
	}

	// Keep a bounded window of recent latencies.
	m.latenciesMS = append(m.latenciesMS, duration.Milliseconds())
	if len(m.latenciesMS) > 1000 {
		m.latenciesMS = m.latenciesMS[len(m.latenciesMS)-1000:]
	}
}

func (m *serviceMetrics) snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avgMS int64
	if len(m.latenciesMS) > 0 {
		var sum int64
		for _, l := range m.latenciesMS {
			sum += l
		}
		avgMS = sum / int64(len(m.latenciesMS))
	}

	return map[string]interface{}{
		"uptime_seconds":   int64(time.Since(m.startTime).Seconds()),
		"total_requests":   m.totalRequests,
		"success_requests": m.successRequests,
		"failed_requests":  m.failedRequests,
		"blocked_requests": m.blockedRequests,
		"avg_latency_ms":   avgMS,
	}
}
