package treasury

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"custodia/pkg/domain"
)

// releaseScript debits the balance only when sufficient funds remain, so a
// racing deposit or release cannot drive the balance negative. Returns the
// remaining balance, or -1 when the debit was refused.
var releaseScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return -1
end
return redis.call('DECRBY', KEYS[1], amount)
`)

// Redis is a treasury whose balance lives in a Redis key, shared across
// server replicas.
type Redis struct {
	client     redis.Cmdable
	balanceKey string
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, balanceKey: "custodia:vault:balance"}
}

func (t *Redis) AvailableBalance(ctx context.Context) (int64, error) {
	val, err := t.client.Get(ctx, t.balanceKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get vault balance: %w", err)
	}
	return val, nil
}

func (t *Redis) Release(ctx context.Context, _ domain.Principal, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive amount %d", ErrReleaseFailed, amount)
	}
	remaining, err := releaseScript.Run(ctx, t.client, []string{t.balanceKey}, amount).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReleaseFailed, err)
	}
	if remaining < 0 {
		return fmt.Errorf("%w: insufficient balance for %d", ErrReleaseFailed, amount)
	}
	return nil
}

// Deposit credits the balance. Dev/test helper; production deposits arrive
// through the backing ledger, not this API.
func (t *Redis) Deposit(ctx context.Context, amount int64) error {
	if err := t.client.IncrBy(ctx, t.balanceKey, amount).Err(); err != nil {
		return fmt.Errorf("deposit vault balance: %w", err)
	}
	return nil
}
