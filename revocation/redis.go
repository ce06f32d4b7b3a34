package revocation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "warden:rev"

// revokeTokenScript records the first revoked-at and keeps the later expiry
// of an existing token entry.
const revokeTokenScript = `
redis.call("SETNX", KEYS[1], ARGV[1])
local exp = tonumber(ARGV[2])
local current_exp = tonumber(redis.call("ZSCORE", KEYS[2], ARGV[3]) or "0")
if current_exp > exp then
  exp = current_exp
end
redis.call("EXPIREAT", KEYS[1], exp)
redis.call("ZADD", KEYS[2], exp, ARGV[3])
return 1
`

// revokeSubjectScript keeps the later cutoff and the later expiry of an
// existing subject entry. The index score doubles as the stored expiry.
const revokeSubjectScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "-1")
local cutoff = tonumber(ARGV[1])
if cutoff > current then
  redis.call("SET", KEYS[1], ARGV[1])
end
local exp = tonumber(ARGV[2])
local current_exp = tonumber(redis.call("ZSCORE", KEYS[2], ARGV[3]) or "0")
if current_exp > exp then
  exp = current_exp
end
redis.call("EXPIREAT", KEYS[1], exp)
redis.call("ZADD", KEYS[2], exp, ARGV[3])
return 1
`

// sweepScript deletes indexed entries due at or before ARGV[1]. Running it
// as one script keeps a concurrent RevokeSubject from being swept between
// the range read and the delete.
const sweepScript = `
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local prefix = ARGV[2]
for _, member in ipairs(members) do
  redis.call("DEL", prefix .. member)
end
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
return #members
`

var (
	revokeTokenLua   = redis.NewScript(revokeTokenScript)
	revokeSubjectLua = redis.NewScript(revokeSubjectScript)
	sweepLua         = redis.NewScript(sweepScript)
)

// Redis is a Registry backed by go-redis. Each entry is its own key with a
// native EXPIREAT, so entries outlive the process and vanish on their own;
// a sorted-set index scored by expiry lets Sweep report and trim them.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis returns a registry namespaced under prefix (default
// "warden:rev").
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) tokenMember(tokenID string) string   { return "tok:" + tokenID }
func (r *Redis) subjectMember(subject string) string { return "sub:" + subject }
func (r *Redis) key(member string) string            { return r.prefix + ":" + member }
func (r *Redis) indexKey() string                    { return r.prefix + ":idx" }

func (r *Redis) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !validID(tokenID) {
		return ErrInvalidEntry
	}

	member := r.tokenMember(tokenID)
	return revokeTokenLua.Run(
		ctx,
		r.client,
		[]string{r.key(member), r.indexKey()},
		r.now().Unix(),
		expiresAt.Unix(),
		member,
	).Err()
}

func (r *Redis) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(r.tokenMember(tokenID))).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) RevokeSubject(ctx context.Context, subject string, cutoff, expiresAt time.Time) error {
	if !validID(subject) {
		return ErrInvalidEntry
	}

	member := r.subjectMember(subject)
	return revokeSubjectLua.Run(
		ctx,
		r.client,
		[]string{r.key(member), r.indexKey()},
		cutoff.Unix(),
		expiresAt.Unix(),
		member,
	).Err()
}

func (r *Redis) Revoked(ctx context.Context, tokenID, subject string, issuedAt time.Time) (bool, error) {
	var (
		exists *redis.IntCmd
		cutoff *redis.StringCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, r.key(r.tokenMember(tokenID)))
		cutoff = pipe.Get(ctx, r.key(r.subjectMember(subject)))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}

	if exists.Val() > 0 {
		return true, nil
	}

	raw, err := cutoff.Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, err
	}
	return coveredByCutoff(issuedAt, unix), nil
}

func (r *Redis) Sweep(ctx context.Context, now time.Time) (int, error) {
	n, err := sweepLua.Run(
		ctx,
		r.client,
		[]string{r.indexKey()},
		now.Unix(),
		r.prefix+":",
	).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}
