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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/assistant/shared/types"
)

func testRedisCounters(t *testing.T) *RedisCounters {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCountersWithClient(client)
}

func TestRedisCountersIncrementAndCount(t *testing.T) {
	counters := testRedisCounters(t)
	ctx := context.Background()

	count, err := counters.Count(ctx, "org:org-1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	n, err := counters.Increment(ctx, "org:org-1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = counters.Increment(ctx, "org:org-1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err = counters.Count(ctx, "org:org-1", "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRedisCountersDateBucketsAreIndependent(t *testing.T) {
	counters := testRedisCounters(t)
	ctx := context.Background()

	_, err := counters.Increment(ctx, "org:org-1", "2025-06-01")
	require.NoError(t, err)

	count, err := counters.Count(ctx, "org:org-1", "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLimiterOverRedis(t *testing.T) {
	counters := testRedisCounters(t)
	l := NewLimiter(counters)
	ctx := context.Background()
	cfg := &types.OrgConfig{MaxDailyActionsPerOrg: 2}

	require.True(t, l.CheckAllowed(ctx, "org-1", "", cfg, "").Allowed)
	l.Increment(ctx, "org-1", "")
	l.Increment(ctx, "org-1", "")

	d := l.CheckAllowed(ctx, "org-1", "", cfg, "")
	require.False(t, d.Allowed)
	assert.Equal(t, types.ReasonOrgDailyLimitExceeded, d.Reason)
}

func TestLimiterFailsOpenOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewLimiter(NewRedisCountersWithClient(client))
	mr.Close()

	cfg := &types.OrgConfig{MaxDailyActionsPerOrg: 1}
	d := l.CheckAllowed(context.Background(), "org-1", "", cfg, "")
	assert.True(t, d.Allowed)
}
