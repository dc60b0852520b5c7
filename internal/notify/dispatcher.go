package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// sendTimeout は1件の送信のタイムアウト。
	sendTimeout = 30 * time.Second
	// sendInterval はSMTPサーバへの送信間隔の下限。
	sendInterval = 100 * time.Millisecond
)

// FailureRecorder は配送失敗を計測する。metrics.Collectorが実装する。
type FailureRecorder interface {
	RecordNotificationFailure(kind string)
}

// Job はキューに積まれた1件の通知。
type Job struct {
	ID      string
	Kind    string
	Message Message
}

// Dispatcher はレスポンス返却後に通知を送るバックグラウンド配送器。
// キューは有界で、満杯の場合は通知を破棄する。
// 送信は1件につき1回だけで、失敗はログと計測のみ。呼び出し元には伝えず再送もしない。
type Dispatcher struct {
	mailer   Mailer
	queue    chan Job
	failures FailureRecorder
	logger   *slog.Logger
	pacer    *rate.Limiter
	done     chan struct{}
}

// NewDispatcher はDispatcherを生成する。failuresはnilでもよい。
func NewDispatcher(mailer Mailer, queueSize int, failures FailureRecorder, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Dispatcher{
		mailer:   mailer,
		queue:    make(chan Job, queueSize),
		failures: failures,
		logger:   logger,
		pacer:    rate.NewLimiter(rate.Every(sendInterval), 1),
		done:     make(chan struct{}),
	}
}

// Enqueue は通知をキューに積む。ブロックせず、満杯の場合はfalseを返す。
func (d *Dispatcher) Enqueue(kind string, msg Message) bool {
	job := Job{ID: uuid.NewString(), Kind: kind, Message: msg}
	select {
	case d.queue <- job:
		return true
	default:
		d.logger.Error("通知キューが満杯のため通知を破棄しました",
			slog.String("job_id", job.ID),
			slog.String("kind", kind),
		)
		d.recordFailure(kind)
		return false
	}
}

// Run はコンテキストがキャンセルされるまでキューの通知を順に送信する。
// キャンセル後はキューに残った通知を送り切ってから返る。
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("通知ディスパッチャを開始しました", slog.Int("queue_size", cap(d.queue)))

	for {
		select {
		case job := <-d.queue:
			d.deliver(ctx, job)
		case <-ctx.Done():
			d.drain()
			d.logger.Info("通知ディスパッチャを停止しました")
			return
		}
	}
}

// Done はRunが終了したときにクローズされるチャネルを返す。
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) drain() {
	ctx := context.Background()
	for {
		select {
		case job := <-d.queue:
			d.deliver(ctx, job)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	ctx = context.WithoutCancel(ctx)
	if err := d.pacer.Wait(ctx); err != nil {
		d.logger.Warn("送信間隔の待機に失敗しました", slog.String("error", err.Error()))
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := d.mailer.Send(sendCtx, job.Message); err != nil {
		d.logger.Error("通知を配送できませんでした",
			slog.String("job_id", job.ID),
			slog.String("kind", job.Kind),
			slog.String("error", err.Error()),
		)
		d.recordFailure(job.Kind)
		return
	}
	d.logger.Info("通知を送信しました",
		slog.String("job_id", job.ID),
		slog.String("kind", job.Kind),
	)
}

func (d *Dispatcher) recordFailure(kind string) {
	if d.failures != nil {
		d.failures.RecordNotificationFailure(kind)
	}
}
