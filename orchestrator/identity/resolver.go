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

package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"axonflow/assistant/shared/logger"
	"axonflow/assistant/shared/types"
)

const cacheTTL = time.Hour

// Claims is the token payload the extension's bearer tokens carry.
type Claims struct {
	UserID   string   `json:"user_id"`
	OrgID    string   `json:"org_id"`
	Roles    []string `json:"roles,omitempty"`
	PlanTier string   `json:"plan_tier,omitempty"`
	jwt.RegisteredClaims
}

// Resolver turns a bearer token (possibly empty) into an Identity plus
// the source that produced it. It never returns an error; the worst
// outcome is an anonymous identity.
type Resolver struct {
	jwtSecret  []byte
	moodleURL  string
	httpClient *http.Client
	log        *logger.Logger

	cache   map[string]*cachedIdentity
	cacheMu sync.Mutex
	now     func() time.Time
}

type cachedIdentity struct {
	identity *types.Identity
	source   types.IdentitySource
	expires  time.Time
}

// NewResolver creates a resolver. jwtSecret may be empty (bearer tokens
// are then never accepted as JWTs); moodleURL may be empty (introspection
// is skipped).
func NewResolver(jwtSecret []byte, moodleURL string) *Resolver {
	return &Resolver{
		jwtSecret:  jwtSecret,
		moodleURL:  moodleURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        logger.New("identity"),
		cache:      make(map[string]*cachedIdentity),
		now:        time.Now,
	}
}

// Resolve produces the caller identity for token. A nil identity with
// source anonymous is the terminal fallback.
func (r *Resolver) Resolve(ctx context.Context, token string) (*types.Identity, types.IdentitySource) {
	if token != "" {
		if id, source, ok := r.fromCache(token); ok {
			return id, source
		}

		if len(r.jwtSecret) > 0 {
			if id, err := r.fromJWT(token); err == nil {
				r.store(token, id, types.IdentitySourceExtension)
				return id, types.IdentitySourceExtension
			} else {
				r.log.Debug("", "", "bearer token is not a valid extension JWT", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}

		if r.moodleURL != "" {
			id, err := r.introspect(ctx, token)
			if err == nil {
				r.store(token, id, types.IdentitySourceMoodle)
				return id, types.IdentitySourceMoodle
			}
			r.log.Warn("", "", "moodle token introspection failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if mock := os.Getenv("MOCK_IDENTITY"); mock != "" {
		return mockIdentity(mock), types.IdentitySourceMock
	}

	return nil, types.IdentitySourceAnonymous
}

func (r *Resolver) fromJWT(token string) (*types.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("token carries no user identity")
	}
	return &types.Identity{
		UserID:   claims.UserID,
		OrgID:    claims.OrgID,
		Roles:    claims.Roles,
		PlanTier: types.PlanTier(claims.PlanTier),
	}, nil
}

// introspect asks the Moodle plugin who the session token belongs to.
func (r *Resolver) introspect(ctx context.Context, token string) (*types.Identity, error) {
	endpoint := fmt.Sprintf("%s/identity?token=%s", r.moodleURL, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moodle identity endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moodle identity endpoint returned status %d", resp.StatusCode)
	}

	var wire struct {
		Success bool `json:"success"`
		Data    struct {
			UserID   string   `json:"user_id"`
			OrgID    string   `json:"orgid"`
			Roles    []string `json:"roles"`
			PlanTier string   `json:"plan_tier"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("malformed moodle identity response: %w", err)
	}
	if !wire.Success || wire.Data.UserID == "" {
		return nil, fmt.Errorf("moodle does not recognize the token")
	}

	return &types.Identity{
		UserID:   wire.Data.UserID,
		OrgID:    wire.Data.OrgID,
		Roles:    wire.Data.Roles,
		PlanTier: types.PlanTier(wire.Data.PlanTier),
	}, nil
}

// mockIdentity builds a development identity from the MOCK_IDENTITY env
// value, either "user@org" or just a user ID.
func mockIdentity(value string) *types.Identity {
	id := &types.Identity{UserID: value, OrgID: "demo-org"}
	for i := 0; i < len(value); i++ {
		if value[i] == '@' {
			id.UserID = value[:i]
			id.OrgID = value[i+1:]
			break
		}
	}
	return id
}

func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *Resolver) fromCache(token string) (*types.Identity, types.IdentitySource, bool) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	entry, ok := r.cache[tokenHash(token)]
	if !ok || r.now().After(entry.expires) {
		return nil, "", false
	}
	return entry.identity, entry.source, true
}

func (r *Resolver) store(token string, id *types.Identity, source types.IdentitySource) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache[tokenHash(token)] = &cachedIdentity{
		identity: id,
		source:   source,
		expires:  r.now().Add(cacheTTL),
	}
}

// Cleanup drops expired cache entries. Scheduled by the orchestrator's
// cron runner.
func (r *Resolver) Cleanup() int {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	now := r.now()
	removed := 0
	for key, entry := range r.cache {
		if now.After(entry.expires) {
			delete(r.cache, key)
			removed++
		}
	}
	return removed
}
