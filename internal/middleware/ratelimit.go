package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

// KeyLimiter はキー（通常は送信元IP）単位のレート制限。
type KeyLimiter interface {
	// Allow は1リクエストを消費できればtrueを返す。
	// 拒否時のretryAfterは次に許可されるまでの目安。
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimitRecorder はレート制限による拒否を記録する。
type RateLimitRecorder interface {
	RecordRateLimited(scope string)
}

// NewRateLimitMiddleware はKeyLimiterで送信元IPごとにリクエストを制限するミドルウェアを返す。
// scopeはキーの名前空間とメトリクスのラベルに使う。
// リミッターがエラーを返した場合はリクエストを通す。
func NewRateLimitMiddleware(limiter KeyLimiter, scope string, recorder RateLimitRecorder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, retryAfter, err := limiter.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("scope", scope),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if recorder != nil {
					recorder.RecordRateLimited(scope)
				}
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("scope", scope),
					slog.String("remote_ip", ip),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				writeRateLimitResponse(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP はリクエストの送信元IPを返す。
// chiのRealIPミドルウェアの後に配置すればプロキシのヘッダーが反映される。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	sec := int(math.Ceil(retryAfter.Seconds()))
	if sec < 1 {
		sec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(sec))
	WriteErrorResponse(w, model.NewRateLimitedError())
}

// keyLog はキーごとの許可済みリクエスト時刻（古い順）。
type keyLog struct {
	hits []time.Time
}

// prune はwindowより古い時刻を捨てる。
func (kl *keyLog) prune(cutoff time.Time) {
	i := 0
	for i < len(kl.hits) && !kl.hits[i].After(cutoff) {
		i++
	}
	kl.hits = kl.hits[i:]
}

// MemoryLimiter はプロセス内のスライディングログによるKeyLimiter。
// 直近windowの間に許可したリクエストがlimit件あれば拒否する。RedisLimiterと同じ挙動。
// 複数レプリカで共有する必要がある場合はRedisLimiterを使う。
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	logs map[string]*keyLog

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter はMemoryLimiterを生成し、バックグラウンドで不要なエントリの掃除を開始する。
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	ml := &MemoryLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		logs:   make(map[string]*keyLog),
		stopCh: make(chan struct{}),
	}
	go ml.cleanupLoop()
	return ml
}

// Stop は掃除のバックグラウンドゴルーチンを停止する。
func (ml *MemoryLimiter) Stop() {
	ml.stopOnce.Do(func() { close(ml.stopCh) })
}

// Allow はKeyLimiterを実装する。拒否したリクエストは記録しない。
// retryAfterは最も古い記録が窓から外れるまでの時間。
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := ml.now()

	ml.mu.Lock()
	defer ml.mu.Unlock()

	kl, ok := ml.logs[key]
	if !ok {
		kl = &keyLog{}
		ml.logs[key] = kl
	}
	kl.prune(now.Add(-ml.window))

	if len(kl.hits) >= ml.limit {
		if len(kl.hits) == 0 {
			return false, ml.window, nil
		}
		return false, kl.hits[0].Add(ml.window).Sub(now), nil
	}
	kl.hits = append(kl.hits, now)
	return true, 0, nil
}

// Len は現在保持しているキーの数を返す。テストおよびメトリクス用。
func (ml *MemoryLimiter) Len() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return len(ml.logs)
}

func (ml *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(ml.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.cleanup()
		case <-ml.stopCh:
			return
		}
	}
}

// cleanup は窓内の記録が残っていないキーを削除する。
func (ml *MemoryLimiter) cleanup() {
	cutoff := ml.now().Add(-ml.window)
	ml.mu.Lock()
	defer ml.mu.Unlock()
	for key, kl := range ml.logs {
		kl.prune(cutoff)
		if len(kl.hits) == 0 {
			delete(ml.logs, key)
		}
	}
}
