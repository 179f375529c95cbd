package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-oauth-frontend/internal/errors"
	"github.com/redis/go-redis/v9"
)

const (
	fieldData     = "data"
	fieldRedeemed = "redeemed"
)

// redeemScript reads the ticket and bumps its redemption counter in one step.
// The caller that sees a counter of 1 owns the ticket.
var redeemScript = redis.NewScript(`
local data = redis.call('HGET', KEYS[1], 'data')
if not data then
  return false
end
local n = redis.call('HINCRBY', KEYS[1], 'redeemed', 1)
return {n, data}
`)

// RedisRegistry shares tickets between server replicas through Redis.
type RedisRegistry struct {
	client    redis.UniversalClient
	keyPrefix string
	opts      options
}

var _ Registry = (*RedisRegistry)(nil)

// NewRedisRegistry connects to addr and verifies the connection.
func NewRedisRegistry(ctx context.Context, addr, password string, db int, keyPrefix string, opts ...Option) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisRegistryWithClient(client, keyPrefix, opts...), nil
}

// NewRedisRegistryWithClient wraps a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisRegistryWithClient(client redis.UniversalClient, keyPrefix string, opts ...Option) *RedisRegistry {
	return &RedisRegistry{
		client:    client,
		keyPrefix: keyPrefix,
		opts:      buildOptions(opts),
	}
}

func (r *RedisRegistry) key(id string) string {
	return fmt.Sprintf("%sticket:%s", r.keyPrefix, id)
}

func (r *RedisRegistry) Issue(ctx context.Context, request RequestContext) (string, error) {
	t := r.opts.newTicket(request)
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket: %w", err)
	}

	key := r.key(t.ID)
	// The key outlives the ticket by one TTL so late redemptions still see a tombstone.
	retention := 2 * r.opts.ttl
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldData, data, fieldRedeemed, 0)
		pipe.PExpire(ctx, key, retention)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to store ticket: %w", err)
	}
	return t.ID, nil
}

func (r *RedisRegistry) Redeem(ctx context.Context, id string) (*RequestContext, error) {
	if id == "" {
		return nil, errors.ErrTicketNotFound
	}

	res, err := redeemScript.Run(ctx, r.client, []string{r.key(id)}).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, errors.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected redeem reply of length %d", len(res))
	}

	count, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected redeem counter type %T", res[0])
	}
	raw, ok := res[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected redeem payload type %T", res[1])
	}

	var t AuthorizationTicket
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket: %w", err)
	}

	request := t.Request
	if count > 1 {
		return &request, errors.ErrTicketUsed
	}
	if t.Expired(r.opts.nowTime()) {
		return &request, errors.ErrTicketExpired
	}
	return &request, nil
}

// Close releases the underlying client.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Retention is how long a ticket key lives in Redis.
func (r *RedisRegistry) Retention() time.Duration {
	return 2 * r.opts.ttl
}
