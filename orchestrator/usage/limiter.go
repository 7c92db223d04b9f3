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

package usage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

// Decision is the outcome of a quota/gate check. Reason is one of the
// stable policy reason codes when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
	Message string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason, message string) Decision {
	return Decision{Allowed: false, Reason: reason, Message: message}
}

// Limiter applies the organization's gates in a fixed order: org
// disabled, extension disabled, domain allowlist, org daily cap, user
// daily cap. The first violated gate wins.
type Limiter struct {
	counters CounterStore
	log      *logger.Logger
	now      func() time.Time
}

// NewLimiter creates a limiter over the given counter store.
func NewLimiter(counters CounterStore) *Limiter {
	return &Limiter{
		counters: counters,
		log:      logger.New("usage"),
		now:      time.Now,
	}
}

func (l *Limiter) today() string {
	return l.now().UTC().Format("2006-01-02")
}

func orgKey(orgID string) string {
	return "org:" + orgID
}

func userKey(orgID, userID string) string {
	return fmt.Sprintf("user:%s:%s", orgID, userID)
}

// CheckAllowed evaluates the gates for one pending action. cfg may be
// nil, meaning no limiter config exists and everything is allowed.
// pageURL is the page the extension captured; it only matters when the
// org restricts domains.
func (l *Limiter) CheckAllowed(ctx context.Context, orgID, userID string, cfg *types.OrgConfig, pageURL string) Decision {
	if cfg == nil {
		return allow()
	}

	if cfg.Enabled != nil && !*cfg.Enabled {
		return deny(types.ReasonOrgDisabled, "AI actions are disabled for this organization")
	}
	if cfg.BrowserExtensionEnabled != nil && !*cfg.BrowserExtensionEnabled {
		return deny(types.ReasonExtensionDisabled, "the browser extension is disabled for this organization")
	}
	if len(cfg.AllowedDomains) > 0 && !domainAllowed(pageURL, cfg.AllowedDomains) {
		return deny(types.ReasonDomainNotAllowed, "this page's domain is not enabled for AI actions")
	}

	date := l.today()
	if cfg.MaxDailyActionsPerOrg > 0 {
		count, err := l.counters.Count(ctx, orgKey(orgID), date)
		if err != nil {
			l.failOpen(orgID, err)
		} else if count >= cfg.MaxDailyActionsPerOrg {
			return deny(types.ReasonOrgDailyLimitExceeded, "the organization's daily action limit has been reached")
		}
	}
	if cfg.MaxDailyActionsPerUser > 0 && userID != "" {
		count, err := l.counters.Count(ctx, userKey(orgID, userID), date)
		if err != nil {
			l.failOpen(orgID, err)
		} else if count >= cfg.MaxDailyActionsPerUser {
			return deny(types.ReasonUserDailyLimitExceeded, "your daily action limit has been reached")
		}
	}
	return allow()
}

// Increment records one executed action against the org and user
// counters. Counter-store failures log and are otherwise ignored.
func (l *Limiter) Increment(ctx context.Context, orgID, userID string) {
	date := l.today()
	if orgID != "" {
		if _, err := l.counters.Increment(ctx, orgKey(orgID), date); err != nil {
			l.failOpen(orgID, err)
		}
	}
	if orgID != "" && userID != "" {
		if _, err := l.counters.Increment(ctx, userKey(orgID, userID), date); err != nil {
			l.failOpen(orgID, err)
		}
	}
}

// Status reports today's counts for an org and optionally a user.
func (l *Limiter) Status(ctx context.Context, orgID, userID string) (orgCount, userCount int) {
	date := l.today()
	orgCount, _ = l.counters.Count(ctx, orgKey(orgID), date)
	if userID != "" {
		userCount, _ = l.counters.Count(ctx, userKey(orgID, userID), date)
	}
	return orgCount, userCount
}

func (l *Limiter) failOpen(orgID string, err error) {
	l.log.Warn(orgID, "", "usage counter store failed, failing open", map[string]interface{}{
		"error": err.Error(),
	})
}

// domainAllowed reports whether pageURL's hostname matches one of the
// allowed domains, either exactly or as a subdomain.
func domainAllowed(pageURL string, allowed []string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range allowed {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
