package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"socialfeed/config"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ScaleOutcome - результат HScaleOrDelete для одного ключа
type ScaleOutcome int

const (
	ScaleMissing ScaleOutcome = iota
	ScaleKept
	ScaleDropped
	ScaleFailed
)

// CacheStore - типизированный доступ к общему key-value хранилищу.
// Ни один метод не возвращает ошибку: сбой хранилища логируется и превращается
// в нейтральный результат (промах, 0, false).
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	GetJSON(ctx context.Context, key string, dest interface{}) bool
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) int64
	DeletePattern(ctx context.Context, pattern string) int64
	ScanKeys(ctx context.Context, pattern string) []string
	Exists(ctx context.Context, key string) bool
	Expire(ctx context.Context, key string, ttl time.Duration) bool

	PrependWithTrim(ctx context.Context, key, value string, maxLen int64, ttl time.Duration) bool
	GetList(ctx context.Context, key string, start, stop int64) []string

	Incr(ctx context.Context, key string) int64
	Decr(ctx context.Context, key string) int64
	AdjustCounter(ctx context.Context, key string, delta int64) (int64, bool)
	GetCounter(ctx context.Context, key string) (int64, bool)
	SetCounter(ctx context.Context, key string, value int64, ttl time.Duration) bool

	AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) int64
	AddToSetIfExists(ctx context.Context, key, member string) (added bool, resident bool)
	RemoveFromSet(ctx context.Context, key string, members ...string) int64
	IsInSet(ctx context.Context, key, member string) (isMember bool, resident bool)
	GetSetMembers(ctx context.Context, key string) []string

	HSet(ctx context.Context, key, field, value string) bool
	HGet(ctx context.Context, key, field string) (string, bool)
	HMSet(ctx context.Context, key string, values map[string]string, ttl time.Duration) bool
	HGetAll(ctx context.Context, key string) map[string]string
	HGetMulti(ctx context.Context, keys []string, field string) map[string]string
	HDel(ctx context.Context, key string, fields ...string) int64
	HIncrBy(ctx context.Context, key, field string, delta int64) int64
	HIncrByFloatCapped(ctx context.Context, key, field string, delta, limit float64, ttl time.Duration, extra map[string]string) (float64, bool)
	HScaleOrDelete(ctx context.Context, key, field string, factor, threshold float64) (float64, ScaleOutcome)
}

// INCRBY только для существующего ключа, результат не уходит ниже нуля.
// INCRBY сохраняет TTL ключа.
var adjustCounterScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return false
end
local c = tonumber(cur) or 0
local d = tonumber(ARGV[1])
if c + d < 0 then
	d = -c
end
return redis.call('INCRBY', KEYS[1], d)
`)

var addToSetIfExistsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('SADD', KEYS[1], ARGV[1])
`)

// ARGV: field, delta, max, ttl_ms, затем пары extra field/value
var hIncrByFloatCappedScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
local s = tonumber(ARGV[2])
if cur then
	s = s + (tonumber(cur) or 0)
end
local max = tonumber(ARGV[3])
if s > max then
	s = max
end
if s < 0 then
	s = 0
end
redis.call('HSET', KEYS[1], ARGV[1], tostring(s))
for i = 5, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
local ttl = tonumber(ARGV[4])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return tostring(s)
`)

// HSET не трогает TTL, поэтому оставшийся срок жизни записи сохраняется
var hScaleOrDeleteScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then
	return false
end
local s = (tonumber(cur) or 0) * tonumber(ARGV[2])
if s < tonumber(ARGV[3]) then
	redis.call('DEL', KEYS[1])
	return 'dropped'
end
redis.call('HSET', KEYS[1], ARGV[1], tostring(s))
return tostring(s)
`)

const scanBatch = 500

type scanPage struct {
	keys   []string
	cursor uint64
}

// RedisCacheStore - реализация CacheStore поверх go-redis с circuit breaker
type RedisCacheStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewRedisCacheStore(client *redis.Client, conf config.CacheConfig, logger *zap.Logger) *RedisCacheStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	br := conf.Breaker
	settings := gobreaker.Settings{
		Name:        "cache_store",
		MaxRequests: br.MaxRequests,
		Interval:    br.Interval,
		Timeout:     br.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < br.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= br.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
		// промах и отмена запроса клиентом - не отказ хранилища
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled)
		},
	}
	return &RedisCacheStore{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// call выполняет операцию через breaker. redis.Nil возвращается как есть,
// любая другая ошибка логируется и превращается в ErrStoreUnavailable.
func call[T any](s *RedisCacheStore, op, key string, fn func() (T, error)) (T, error) {
	var zero T
	if s == nil || s.client == nil {
		return zero, ErrStoreUnavailable
	}
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, err
		}
		cacheStoreErrors.WithLabelValues(op).Inc()
		s.logger.Warn("cache store operation failed",
			zap.String("op", op), zap.String("key", key), zap.Error(err))
		return zero, ErrStoreUnavailable
	}
	v, _ := res.(T)
	return v, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) (string, bool) {
	v, err := call(s, "get", key, func() (string, error) {
		return s.client.Get(ctx, key).Result()
	})
	return v, err == nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	_, err := call(s, "set", key, func() (string, error) {
		return s.client.Set(ctx, key, value, ttl).Result()
	})
	return err == nil
}

func (s *RedisCacheStore) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// битое значение не лечим, просто считаем промахом
		s.logger.Warn("cache value is not valid JSON", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *RedisCacheStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to marshal cache value", zap.String("key", key), zap.Error(err))
		return false
	}
	return s.Set(ctx, key, string(data), ttl)
}

func (s *RedisCacheStore) Delete(ctx context.Context, keys ...string) int64 {
	if len(keys) == 0 {
		return 0
	}
	n, _ := call(s, "del", keys[0], func() (int64, error) {
		return s.client.Del(ctx, keys...).Result()
	})
	return n
}

// ScanKeys обходит пространство ключей курсором, без KEYS
func (s *RedisCacheStore) ScanKeys(ctx context.Context, pattern string) []string {
	var keys []string
	var cursor uint64
	for {
		p, err := call(s, "scan", pattern, func() (scanPage, error) {
			k, c, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			return scanPage{keys: k, cursor: c}, err
		})
		if err != nil {
			return keys
		}
		keys = append(keys, p.keys...)
		cursor = p.cursor
		if cursor == 0 {
			return keys
		}
	}
}

func (s *RedisCacheStore) DeletePattern(ctx context.Context, pattern string) int64 {
	keys := s.ScanKeys(ctx, pattern)
	var deleted int64
	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		deleted += s.Delete(ctx, keys[start:end]...)
	}
	return deleted
}

func (s *RedisCacheStore) Exists(ctx context.Context, key string) bool {
	n, _ := call(s, "exists", key, func() (int64, error) {
		return s.client.Exists(ctx, key).Result()
	})
	return n > 0
}

func (s *RedisCacheStore) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, _ := call(s, "expire", key, func() (bool, error) {
		return s.client.Expire(ctx, key, ttl).Result()
	})
	return ok
}

func (s *RedisCacheStore) PrependWithTrim(ctx context.Context, key, value string, maxLen int64, ttl time.Duration) bool {
	_, err := call(s, "lpush", key, func() ([]redis.Cmder, error) {
		return s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, key, value)
			if maxLen > 0 {
				pipe.LTrim(ctx, key, 0, maxLen-1)
			}
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
	})
	return err == nil
}

func (s *RedisCacheStore) GetList(ctx context.Context, key string, start, stop int64) []string {
	v, _ := call(s, "lrange", key, func() ([]string, error) {
		return s.client.LRange(ctx, key, start, stop).Result()
	})
	return v
}

func (s *RedisCacheStore) Incr(ctx context.Context, key string) int64 {
	n, _ := call(s, "incr", key, func() (int64, error) {
		return s.client.Incr(ctx, key).Result()
	})
	return n
}

// Decr уменьшает существующий счетчик на 1, не ниже нуля; отсутствующий ключ не создается
func (s *RedisCacheStore) Decr(ctx context.Context, key string) int64 {
	n, _ := s.AdjustCounter(ctx, key, -1)
	return n
}

// AdjustCounter меняет счетчик только если он уже в кеше.
// Второе значение - был ли ключ резидентным.
func (s *RedisCacheStore) AdjustCounter(ctx context.Context, key string, delta int64) (int64, bool) {
	n, err := call(s, "adjust_counter", key, func() (int64, error) {
		return adjustCounterScript.Run(ctx, s.client, []string{key}, delta).Int64()
	})
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *RedisCacheStore) GetCounter(ctx context.Context, key string) (int64, bool) {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("cache counter is not an integer", zap.String("key", key), zap.String("value", raw))
		return 0, false
	}
	if n < 0 {
		n = 0
	}
	return n, true
}

func (s *RedisCacheStore) SetCounter(ctx context.Context, key string, value int64, ttl time.Duration) bool {
	if value < 0 {
		value = 0
	}
	return s.Set(ctx, key, strconv.FormatInt(value, 10), ttl)
}

func (s *RedisCacheStore) AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) int64 {
	if len(members) == 0 {
		return 0
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	var sadd *redis.IntCmd
	_, err := call(s, "sadd", key, func() ([]redis.Cmder, error) {
		return s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			sadd = pipe.SAdd(ctx, key, args...)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
	})
	if err != nil {
		return 0
	}
	return sadd.Val()
}

// AddToSetIfExists добавляет элемент только в уже загруженное множество
func (s *RedisCacheStore) AddToSetIfExists(ctx context.Context, key, member string) (bool, bool) {
	n, err := call(s, "sadd_if_exists", key, func() (int64, error) {
		return addToSetIfExistsScript.Run(ctx, s.client, []string{key}, member).Int64()
	})
	if err != nil || n < 0 {
		return false, false
	}
	return n == 1, true
}

func (s *RedisCacheStore) RemoveFromSet(ctx context.Context, key string, members ...string) int64 {
	if len(members) == 0 {
		return 0
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	n, _ := call(s, "srem", key, func() (int64, error) {
		return s.client.SRem(ctx, key, args...).Result()
	})
	return n
}

// IsInSet возвращает членство и то, есть ли множество в кеше вообще
func (s *RedisCacheStore) IsInSet(ctx context.Context, key, member string) (bool, bool) {
	var exists *redis.IntCmd
	var isMember *redis.BoolCmd
	_, err := call(s, "sismember", key, func() ([]redis.Cmder, error) {
		return s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			exists = pipe.Exists(ctx, key)
			isMember = pipe.SIsMember(ctx, key, member)
			return nil
		})
	})
	if err != nil {
		return false, false
	}
	return isMember.Val(), exists.Val() > 0
}

func (s *RedisCacheStore) GetSetMembers(ctx context.Context, key string) []string {
	v, _ := call(s, "smembers", key, func() ([]string, error) {
		return s.client.SMembers(ctx, key).Result()
	})
	return v
}

func (s *RedisCacheStore) HSet(ctx context.Context, key, field, value string) bool {
	_, err := call(s, "hset", key, func() (int64, error) {
		return s.client.HSet(ctx, key, field, value).Result()
	})
	return err == nil
}

func (s *RedisCacheStore) HGet(ctx context.Context, key, field string) (string, bool) {
	v, err := call(s, "hget", key, func() (string, error) {
		return s.client.HGet(ctx, key, field).Result()
	})
	return v, err == nil
}

func (s *RedisCacheStore) HMSet(ctx context.Context, key string, values map[string]string, ttl time.Duration) bool {
	if len(values) == 0 {
		return true
	}
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		fields[k] = v
	}
	_, err := call(s, "hmset", key, func() ([]redis.Cmder, error) {
		return s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
	})
	return err == nil
}

func (s *RedisCacheStore) HGetAll(ctx context.Context, key string) map[string]string {
	v, err := call(s, "hgetall", key, func() (map[string]string, error) {
		return s.client.HGetAll(ctx, key).Result()
	})
	if err != nil || v == nil {
		return map[string]string{}
	}
	return v
}

// HGetMulti читает одно поле из многих хешей за один round-trip.
// Отсутствующие ключи в результат не попадают.
func (s *RedisCacheStore) HGetMulti(ctx context.Context, keys []string, field string) map[string]string {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result
	}
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := call(s, "hget_multi", keys[0], func() ([]redis.Cmder, error) {
		res, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, key := range keys {
				cmds[i] = pipe.HGet(ctx, key, field)
			}
			return nil
		})
		// redis.Nil отдельных ключей - это просто промахи
		if errors.Is(err, redis.Nil) {
			err = nil
		}
		return res, err
	})
	if err != nil {
		return result
	}
	for i, cmd := range cmds {
		if v, err := cmd.Result(); err == nil {
			result[keys[i]] = v
		}
	}
	return result
}

func (s *RedisCacheStore) HDel(ctx context.Context, key string, fields ...string) int64 {
	if len(fields) == 0 {
		return 0
	}
	n, _ := call(s, "hdel", key, func() (int64, error) {
		return s.client.HDel(ctx, key, fields...).Result()
	})
	return n
}

func (s *RedisCacheStore) HIncrBy(ctx context.Context, key, field string, delta int64) int64 {
	n, _ := call(s, "hincrby", key, func() (int64, error) {
		return s.client.HIncrBy(ctx, key, field, delta).Result()
	})
	return n
}

// HIncrByFloatCapped атомарно прибавляет delta к полю с насыщением в [0, limit],
// записывает extra-поля и обновляет TTL
func (s *RedisCacheStore) HIncrByFloatCapped(ctx context.Context, key, field string, delta, limit float64, ttl time.Duration, extra map[string]string) (float64, bool) {
	args := []interface{}{
		field,
		strconv.FormatFloat(delta, 'f', -1, 64),
		strconv.FormatFloat(limit, 'f', -1, 64),
		ttl.Milliseconds(),
	}
	for k, v := range extra {
		args = append(args, k, v)
	}
	raw, err := call(s, "hincrbyfloat_capped", key, func() (string, error) {
		return hIncrByFloatCappedScript.Run(ctx, s.client, []string{key}, args...).Text()
	})
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// HScaleOrDelete умножает поле на factor; если результат ниже threshold, ключ удаляется
func (s *RedisCacheStore) HScaleOrDelete(ctx context.Context, key, field string, factor, threshold float64) (float64, ScaleOutcome) {
	raw, err := call(s, "hscale_or_delete", key, func() (string, error) {
		return hScaleOrDeleteScript.Run(ctx, s.client, []string{key},
			field,
			strconv.FormatFloat(factor, 'f', -1, 64),
			strconv.FormatFloat(threshold, 'f', -1, 64),
		).Text()
	})
	if errors.Is(err, redis.Nil) {
		return 0, ScaleMissing
	}
	if err != nil {
		return 0, ScaleFailed
	}
	if raw == "dropped" {
		return 0, ScaleDropped
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ScaleFailed
	}
	return v, ScaleKept
}

// counterOrLoad читает счетчик из кеша, а при промахе берет значение из БД и засевает кеш
func counterOrLoad(ctx context.Context, store CacheStore, key string, ttl time.Duration, load func() (int64, error)) (int64, error) {
	if n, ok := store.GetCounter(ctx, key); ok {
		return n, nil
	}
	n, err := load()
	if err != nil {
		return 0, err
	}
	store.SetCounter(ctx, key, n, ttl)
	return n, nil
}
