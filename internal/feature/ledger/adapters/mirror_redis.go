package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"options_backend/internal/feature/ledger/usecase"
)

// DefaultMirrorTTL はミラーに書いた残高の保持期間です。
const DefaultMirrorTTL = 7 * 24 * time.Hour

type mirrorEntry struct {
	Amount    float64   `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalanceMirrorRedis はMirrorインターフェースのRedis実装です。
type BalanceMirrorRedis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ usecase.Mirror = (*BalanceMirrorRedis)(nil)

// NewBalanceMirrorRedis はBalanceMirrorRedisを生成します。ttlが0以下の場合はDefaultMirrorTTLを使います。
func NewBalanceMirrorRedis(client *redis.Client, prefix string, ttl time.Duration) *BalanceMirrorRedis {
	if ttl <= 0 {
		ttl = DefaultMirrorTTL
	}
	return &BalanceMirrorRedis{client: client, prefix: prefix, ttl: ttl}
}

func (r *BalanceMirrorRedis) key(accountID string) string {
	return fmt.Sprintf("%s:balance:%s", r.prefix, accountID)
}

// Load はミラーされた残高を返します。キーが無い場合はfalseを返します。
func (r *BalanceMirrorRedis) Load(ctx context.Context, accountID string) (float64, bool, error) {
	data, err := r.client.Get(ctx, r.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	var e mirrorEntry
	if err := json.Unmarshal(data, &e); err != nil {
		// 壊れたエントリは捨ててミス扱いにする
		_ = r.client.Del(ctx, r.key(accountID)).Err()
		return 0, false, nil
	}
	return e.Amount, true, nil
}

// Store は残高を書き込みます。
func (r *BalanceMirrorRedis) Store(ctx context.Context, accountID string, amount float64) error {
	data, err := json.Marshal(mirrorEntry{Amount: amount, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}
	return r.client.Set(ctx, r.key(accountID), data, r.ttl).Err()
}
