package bidding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter 限制單一出價者對單一拍賣的出價頻率。
// 計數與判斷必須是原子的：同一使用者的併發請求不能全部通過檢查。
// 視窗大小與次數上限是部署層的設定值，不是行為契約。
type RateLimiter interface {
	// Allow 消耗一次出價額度。超過上限時回傳 false 與建議的重試間隔。
	Allow(ctx context.Context, auctionID, bidderID string) (bool, time.Duration, error)
}

// rateLimitScript 以時間分桶的計數器實作原子限流。
//  KEYS[1] - 分桶後的 (auction, bidder) 計數鍵
//  ARGV[1] - 視窗長度（毫秒）
//  ARGV[2] - 視窗內允許的出價次數
//
// 返回值:
//  0  - 允許
//  >0 - 拒絕，值為鍵剩餘的毫秒數（重試間隔）
//
// 流程:
//  - 1. INCR 計數鍵
//  - 2. 第一次建立時設定過期時間（即視窗長度）
//  - 3. 超過上限時回傳剩餘毫秒數，否則回傳 0
var rateLimitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
if count > tonumber(ARGV[2]) then
    local ttl = redis.call('PTTL', KEYS[1])
    if ttl < 0 then
        ttl = tonumber(ARGV[1])
    end
    return ttl
end
return 0
`)

// RedisRateLimiter 以 Redis 上的原子計數器實作 RateLimiter，
// 多個服務實例共用同一份計數，不存在 check-then-act 的空窗。
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter 建立跨實例的出價限流器。
func NewRedisRateLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, auctionID, bidderID string) (bool, time.Duration, error) {
	const op = "RedisRateLimiter.Allow"
	key := fmt.Sprintf("%sratelimit:%s:%s", l.keyPrefix, auctionID, bidderID)
	ttl, err := rateLimitScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds(), l.limit).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("[%s] Fail to run rate limit script, err=%w", op, err)
	}
	if ttl > 0 {
		return false, time.Duration(ttl) * time.Millisecond, nil
	}
	return true, 0, nil
}

// MemoryRateLimiter 是單機版的 RateLimiter，分桶語意與 Redis 版相同，
// 供測試與單實例部署使用。
type MemoryRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, auctionID, bidderID string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := auctionID + ":" + bidderID
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	b.count++
	if b.count > l.limit {
		return false, b.resetAt.Sub(now), nil
	}
	return true, 0, nil
}
