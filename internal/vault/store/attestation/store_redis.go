package attestation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sanctuary/internal/vault/models"
	"sanctuary/pkg/platform/sentinel"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	redisScriptDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sanctuary_attestation_redis_duration_ms",
		Help:    "Latency of attestation Redis scripts in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	}, []string{"op"})
)

const (
	// defaultKeyPrefix namespaces attestation hashes when no deployment
	// prefix is configured.
	defaultKeyPrefix = "sanctuary:"

	statusMissing  = -1
	statusExpired  = -2
	statusConsumed = -3
)

// issueScript refuses consumed keys and otherwise (re)sets issued_at.
// Returns 1 when an unconsumed attestation was refreshed, 0 when created.
var issueScript = redis.NewScript(`
local consumed = redis.call('HGET', KEYS[1], 'consumed')
if consumed == '1' then
	return -3
end
local existed = redis.call('EXISTS', KEYS[1])
redis.call('HSET', KEYS[1], 'vault', ARGV[1], 'issued_at', ARGV[2], 'consumed', '0')
return existed
`)

// consumeScript applies the lifecycle checks in order (missing, expired,
// consumed) and flips the flag. ARGV[1] is the earliest issued_at that is
// still fresh. Returns {status, vault, issued_at, consumed_at}.
var consumeScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'vault', 'issued_at', 'consumed', 'consumed_at')
if not fields[2] then
	return {-1, '', '0', '0'}
end
local consumedAt = fields[4] or '0'
if tonumber(fields[2]) < tonumber(ARGV[1]) then
	return {-2, fields[1], fields[2], consumedAt}
end
if fields[3] == '1' then
	return {-3, fields[1], fields[2], consumedAt}
end
redis.call('HSET', KEYS[1], 'consumed', '1', 'consumed_at', ARGV[2])
return {1, fields[1], fields[2], ARGV[2]}
`)

// RedisStore shares attestation state across service replicas. Each
// attestation is a hash; lifecycle transitions run as Lua scripts so the
// check-and-set is atomic on the server.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces keys so several deployments can share a server.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) redisKey(key common.Hash) string {
	return s.keyPrefix + "attestation:" + key.Hex()
}

func observe(op string, start time.Time) {
	redisScriptDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func (s *RedisStore) Issue(ctx context.Context, vault common.Address, key common.Hash, now time.Time) (bool, error) {
	defer observe("issue", time.Now())

	res, err := issueScript.Run(ctx, s.client, []string{s.redisKey(key)},
		vault.Hex(), now.UnixMicro()).Int64()
	if err != nil {
		return false, fmt.Errorf("issue attestation: %w", err)
	}
	if res == statusConsumed {
		return false, fmt.Errorf("attestation %s consumed: %w", key.Hex(), sentinel.ErrAlreadyUsed)
	}
	return res == 1, nil
}

func (s *RedisStore) TryConsume(ctx context.Context, key common.Hash, now time.Time, window time.Duration) (*models.Attestation, error) {
	defer observe("consume", time.Now())

	cutoff := now.Add(-window).UnixMicro()
	raw, err := consumeScript.Run(ctx, s.client, []string{s.redisKey(key)},
		cutoff, now.UnixMicro()).Slice()
	if err != nil {
		return nil, fmt.Errorf("consume attestation: %w", err)
	}
	status, record, err := decodeConsumeResult(key, raw)
	if err != nil {
		return nil, err
	}

	switch status {
	case statusMissing:
		return nil, fmt.Errorf("attestation %s not found: %w", key.Hex(), sentinel.ErrNotFound)
	case statusExpired:
		return record, fmt.Errorf("attestation %s expired: %w", key.Hex(), sentinel.ErrExpired)
	case statusConsumed:
		return record, fmt.Errorf("attestation %s consumed: %w", key.Hex(), sentinel.ErrAlreadyUsed)
	}
	return record, nil
}

func (s *RedisStore) FindByKey(ctx context.Context, key common.Hash) (*models.Attestation, error) {
	fields, err := s.client.HMGet(ctx, s.redisKey(key), "vault", "issued_at", "consumed", "consumed_at").Result()
	if err != nil {
		return nil, fmt.Errorf("find attestation: %w", err)
	}
	if fields[1] == nil {
		return nil, fmt.Errorf("attestation %s not found: %w", key.Hex(), sentinel.ErrNotFound)
	}
	consumedAt := "0"
	if v, ok := fields[3].(string); ok {
		consumedAt = v
	}
	consumed, _ := fields[2].(string)
	vault, _ := fields[0].(string)
	issuedAt, _ := fields[1].(string)
	return buildRecord(key, vault, issuedAt, consumed == "1", consumedAt)
}

func decodeConsumeResult(key common.Hash, raw []any) (int64, *models.Attestation, error) {
	if len(raw) != 4 {
		return 0, nil, fmt.Errorf("unexpected consume reply length %d", len(raw))
	}
	status, ok := raw[0].(int64)
	if !ok {
		return 0, nil, errors.New("unexpected consume reply status")
	}
	if status == statusMissing {
		return status, nil, nil
	}
	vault, _ := raw[1].(string)
	issuedAt, _ := raw[2].(string)
	consumedAt, _ := raw[3].(string)
	consumed := status == statusConsumed || status == 1
	record, err := buildRecord(key, vault, issuedAt, consumed, consumedAt)
	if err != nil {
		return 0, nil, err
	}
	return status, record, nil
}

func buildRecord(key common.Hash, vault, issuedAt string, consumed bool, consumedAt string) (*models.Attestation, error) {
	issued, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	record := &models.Attestation{
		Key:      key,
		Vault:    common.HexToAddress(vault),
		IssuedAt: time.UnixMicro(issued).UTC(),
		Consumed: consumed,
	}
	if consumed {
		if at, err := strconv.ParseInt(consumedAt, 10, 64); err == nil && at > 0 {
			record.ConsumedAt = time.UnixMicro(at).UTC()
		}
	}
	return record, nil
}
