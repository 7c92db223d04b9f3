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
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounters is the shared CounterStore used when the orchestrator
// runs more than one replica. Each bucket key carries a 48h expiry so
// Redis cleans up after itself; the date in the key does the daily reset.
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters connects to redisURL (redis://host:port[/db]) and
// verifies the connection.
func NewRedisCounters(redisURL string) (*RedisCounters, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCounters{client: client}, nil
}

// NewRedisCountersWithClient wraps an existing client. Used by tests.
func NewRedisCountersWithClient(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

func bucketKey(key, date string) string {
	return fmt.Sprintf("usage:%s:%s", key, date)
}

// Count returns the counter for key in the given date bucket.
func (r *RedisCounters) Count(ctx context.Context, key, date string) (int, error) {
	val, err := r.client.Get(ctx, bucketKey(key, date)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return val, nil
}

// Increment bumps the counter and refreshes its expiry atomically.
func (r *RedisCounters) Increment(ctx context.Context, key, date string) (int, error) {
	bucket := bucketKey(key, date)

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return int(incr.Val()), nil
}
