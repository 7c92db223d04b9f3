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

package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Chain executes a prompt against an ordered provider list: the configured
// primary first, then each fallback. The first provider to answer wins.
// Every try is recorded as an Attempt, so callers can attribute the final
// answer and detect fallback. There is no circuit breaker beyond the linear
// list: a known-bad provider is retried on the next request.
type Chain struct {
	providers   map[string]Provider
	callTimeout time.Duration
	logger      *log.Logger
	mu          sync.RWMutex
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithCallTimeout bounds each individual provider call.
func WithCallTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		c.callTimeout = d
	}
}

// WithChainLogger sets the logger.
func WithChainLogger(l *log.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = l
	}
}

// NewChain creates an empty provider chain.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		providers:   make(map[string]Provider),
		callTimeout: 30 * time.Second,
		logger:      log.New(os.Stdout, "[LLM_CHAIN] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a provider to the chain. Registering a provider under an
// already-used name replaces the previous one.
func (c *Chain) Register(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[p.Name()] = p
}

// Get returns a registered provider by name.
func (c *Chain) Get(name string) (Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	return p, ok
}

// Providers returns the names of all registered providers.
func (c *Chain) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	return names
}

// Execute runs prompt through the ordered provider list. The returned
// attempts always contain one entry per provider contacted, including the
// winner; when every provider fails the error is an *ExhaustedError
// aggregating the same attempts.
func (c *Chain) Execute(ctx context.Context, prompt string, primary string, fallbacks []string, options QueryOptions) (*Response, []Attempt, error) {
	order := c.resolveOrder(primary, fallbacks)
	if len(order) == 0 {
		return nil, nil, fmt.Errorf("no providers configured")
	}

	var attempts []Attempt
	for _, name := range order {
		c.mu.RLock()
		provider, ok := c.providers[name]
		c.mu.RUnlock()

		if !ok {
			attempts = append(attempts, Attempt{Provider: name, Model: options.Model, Err: "provider not registered"})
			continue
		}
		if !provider.IsHealthy() {
			attempts = append(attempts, Attempt{Provider: name, Model: options.Model, Err: "provider unhealthy"})
			c.logger.Printf("Skipping unhealthy provider %s", name)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		start := time.Now()
		resp, err := provider.Query(callCtx, prompt, options)
		cancel()
		elapsed := time.Since(start)

		if err != nil {
			attempts = append(attempts, Attempt{
				Provider: name,
				Model:    options.Model,
				Duration: elapsed,
				Err:      err.Error(),
			})
			c.logger.Printf("Provider %s failed after %v: %v", name, elapsed, err)
			continue
		}

		attempts = append(attempts, Attempt{
			Provider: name,
			Model:    resp.Model,
			Duration: elapsed,
			Usage:    resp.Usage,
		})
		if len(attempts) > 1 {
			c.logger.Printf("Failed over to %s after %d failed attempt(s)", name, len(attempts)-1)
		}
		return resp, attempts, nil
	}

	return nil, attempts, &ExhaustedError{Attempts: attempts}
}

// resolveOrder produces the deduplicated provider order: primary first,
// then fallbacks.
func (c *Chain) resolveOrder(primary string, fallbacks []string) []string {
	seen := make(map[string]bool)
	var order []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
	}
	add(primary)
	for _, f := range fallbacks {
		add(f)
	}
	return order
}
