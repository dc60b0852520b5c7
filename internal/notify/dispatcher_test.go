package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type recordingMailer struct {
	mu       sync.Mutex
	sent     []Message
	failures int // 先頭からこの回数だけ失敗する
	calls    int
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type countingRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (r *countingRecorder) RecordNotificationFailure(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func (m *recordingMailer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// unpaced は送信間隔の待機をなくしたDispatcherを返す。
func unpaced(d *Dispatcher) *Dispatcher {
	d.pacer = rate.NewLimiter(rate.Inf, 1)
	return d
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, 10, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if !d.Enqueue("verification", Message{To: "a@example.com"}) {
		t.Fatal("Enqueue returned false")
	}
	waitFor(t, func() bool { return mailer.sentCount() == 1 })
}

func TestDispatcher_FailedSendIsNotRetried(t *testing.T) {
	mailer := &recordingMailer{failures: 1}
	recorder := &countingRecorder{}
	var logs bytes.Buffer
	d := unpaced(NewDispatcher(mailer, 10, recorder, slog.New(slog.NewJSONHandler(&logs, nil))))

	d.deliver(context.Background(), Job{ID: "1", Kind: "contact"})

	if mailer.callCount() != 1 {
		t.Errorf("calls = %d, want 1", mailer.callCount())
	}
	if mailer.sentCount() != 0 {
		t.Errorf("sent = %d, want 0", mailer.sentCount())
	}
	if recorder.count() != 1 || recorder.kinds[0] != "contact" {
		t.Errorf("failures = %v, want [contact]", recorder.kinds)
	}
	if !strings.Contains(logs.String(), `"level":"ERROR"`) || !strings.Contains(logs.String(), "smtp unavailable") {
		t.Errorf("error log not written: %s", logs.String())
	}
}

func TestDispatcher_Run_OneSendPerFailedJob(t *testing.T) {
	// 先頭2件は失敗、3件目は成功する
	mailer := &recordingMailer{failures: 2}
	recorder := &countingRecorder{}
	d := unpaced(NewDispatcher(mailer, 10, recorder, discardLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue("verification", Message{To: "a@example.com"})
	d.Enqueue("reset", Message{To: "b@example.com"})
	d.Enqueue("contact", Message{To: "c@example.com"})
	waitFor(t, func() bool { return mailer.callCount() == 3 })

	// 再送があれば呼び出し回数が増える
	time.Sleep(50 * time.Millisecond)
	if mailer.callCount() != 3 {
		t.Errorf("calls = %d, want 3", mailer.callCount())
	}
	if mailer.sentCount() != 1 || mailer.sent[0].To != "c@example.com" {
		t.Errorf("sent = %v, want only c@example.com", mailer.sent)
	}
	if recorder.count() != 2 {
		t.Errorf("failures = %d, want 2", recorder.count())
	}
}

func TestDispatcher_PacesSends(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, 10, nil, discardLogger())
	d.pacer = rate.NewLimiter(rate.Every(40*time.Millisecond), 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		d.deliver(context.Background(), Job{ID: "x", Kind: "contact"})
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("3 sends took %v, want at least 2 intervals", elapsed)
	}
	if mailer.sentCount() != 3 {
		t.Errorf("sent = %d, want 3", mailer.sentCount())
	}
}

func TestDispatcher_Enqueue_FullQueueDrops(t *testing.T) {
	recorder := &countingRecorder{}
	d := NewDispatcher(&recordingMailer{}, 1, recorder, discardLogger())

	if !d.Enqueue("contact", Message{To: "a@example.com"}) {
		t.Fatal("first Enqueue should succeed")
	}
	if d.Enqueue("contact", Message{To: "b@example.com"}) {
		t.Fatal("second Enqueue should fail on a full queue")
	}
	if recorder.count() != 1 {
		t.Errorf("failures = %d, want 1", recorder.count())
	}
}

func TestDispatcher_Run_DrainsOnCancel(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, 10, nil, discardLogger())
	d.Enqueue("a", Message{To: "1@example.com"})
	d.Enqueue("b", Message{To: "2@example.com"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	select {
	case <-d.Done():
	default:
		t.Fatal("Done channel should be closed after Run returns")
	}
	if mailer.sentCount() != 2 {
		t.Errorf("sent = %d, want 2 (drained)", mailer.sentCount())
	}
}
