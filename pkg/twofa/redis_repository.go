package twofa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "twofa:"
	redisTxRetries        = 10
)

// addMethodScript appends a method unless its type/value pair is taken.
// KEYS: methods, pairs, order. ARGV: id, pair field, record.
var addMethodScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[2], ARGV[2]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[3])
redis.call("HSET", KEYS[2], ARGV[2], ARGV[1])
redis.call("RPUSH", KEYS[3], ARGV[1])
return 1
`)

// RedisMethodRepository implements MethodRepository on Redis. Each user owns
// three keys sharing a hash tag so they land in one cluster slot:
//
//	{prefix}{user}:methods  hash   method id -> JSON record
//	{prefix}{user}:pairs    hash   type NUL value -> method id
//	{prefix}{user}:order    list   method ids in creation order
//
// Appends run as a Lua script; updates and removals as optimistic WATCH/MULTI
// transactions.
type RedisMethodRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisMethodRepository(client redis.UniversalClient, keyPrefix string) *RedisMethodRepository {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisMethodRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisMethodRepository) methodsKey(userID string) string {
	return fmt.Sprintf("%s{%s}:methods", r.keyPrefix, userID)
}

func (r *RedisMethodRepository) pairsKey(userID string) string {
	return fmt.Sprintf("%s{%s}:pairs", r.keyPrefix, userID)
}

func (r *RedisMethodRepository) orderKey(userID string) string {
	return fmt.Sprintf("%s{%s}:order", r.keyPrefix, userID)
}

func pairField(t, v string) string {
	return t + "\x00" + v
}

func (r *RedisMethodRepository) ListMethods(ctx context.Context, userID string) (MethodList, error) {
	var order *redis.StringSliceCmd
	var all *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		order = pipe.LRange(ctx, r.orderKey(userID), 0, -1)
		all = pipe.HGetAll(ctx, r.methodsKey(userID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read methods: %w", err)
	}

	ids := order.Val()
	records := all.Val()
	methods := make(MethodList, 0, len(ids))
	for _, id := range ids {
		raw, ok := records[id]
		if !ok {
			slog.Warn("Method id in order list without record", "userId", userID, "methodId", id)
			continue
		}
		var rec methodRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode method %s: %w", id, err)
		}
		methods = append(methods, rec.method())
	}
	return methods, nil
}

func (r *RedisMethodRepository) AddMethod(ctx context.Context, userID string, method Method) error {
	data, err := json.Marshal(toRecord(method))
	if err != nil {
		return fmt.Errorf("failed to encode method: %w", err)
	}

	added, err := addMethodScript.Run(ctx, r.client,
		[]string{r.methodsKey(userID), r.pairsKey(userID), r.orderKey(userID)},
		method.ID, pairField(method.Type, method.Value), data,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to add method: %w", err)
	}
	if added == 0 {
		return ErrDuplicateMethod
	}
	return nil
}

func (r *RedisMethodRepository) SetEnabled(ctx context.Context, userID, methodID string, enabled bool) error {
	return r.update(ctx, userID, methodID, func(rec *methodRecord) {
		rec.Enabled = enabled
	})
}

func (r *RedisMethodRepository) TouchLastUsed(ctx context.Context, userID, methodID string, at time.Time) error {
	return r.update(ctx, userID, methodID, func(rec *methodRecord) {
		t := at.UTC()
		rec.LastUsedAt = &t
	})
}

func (r *RedisMethodRepository) RemoveMethod(ctx context.Context, userID, methodID string) error {
	methods := r.methodsKey(userID)
	return r.transact(ctx, func(tx *redis.Tx) error {
		rec, err := r.get(ctx, tx, methods, methodID)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, methods, methodID)
			pipe.HDel(ctx, r.pairsKey(userID), pairField(rec.Type, rec.Value))
			pipe.LRem(ctx, r.orderKey(userID), 0, methodID)
			return nil
		})
		return err
	}, methods, r.pairsKey(userID))
}

func (r *RedisMethodRepository) update(ctx context.Context, userID, methodID string, fn func(*methodRecord)) error {
	methods := r.methodsKey(userID)
	return r.transact(ctx, func(tx *redis.Tx) error {
		rec, err := r.get(ctx, tx, methods, methodID)
		if err != nil {
			return err
		}
		fn(&rec)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode method: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, methods, methodID, data)
			return nil
		})
		return err
	}, methods)
}

func (r *RedisMethodRepository) get(ctx context.Context, tx *redis.Tx, key, methodID string) (methodRecord, error) {
	raw, err := tx.HGet(ctx, key, methodID).Result()
	if errors.Is(err, redis.Nil) {
		return methodRecord{}, ErrMethodNotFound
	}
	if err != nil {
		return methodRecord{}, err
	}
	var rec methodRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return methodRecord{}, fmt.Errorf("failed to decode method %s: %w", methodID, err)
	}
	return rec, nil
}

// transact retries fn while a watched key changes underneath it
func (r *RedisMethodRepository) transact(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < redisTxRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			slog.Debug("Redis transaction conflict, retrying", "attempt", i+1)
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction failed after %d attempts: %w", redisTxRetries, redis.TxFailedErr)
}
