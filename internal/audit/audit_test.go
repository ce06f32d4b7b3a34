package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports drops")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}

	close(sink.release)
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if got := uint64(len(sink.events)) + d.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}
	d.Close()
	d.Close()

	if n := len(sink.Events()); n != 5 {
		t.Fatalf("flushed %d events, want 5", n)
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if n := len(sink.Events()); n != 5 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "login_success", AccountID: "a1", Success: true})
	s.Emit(context.Background(), Event{EventType: "logout", AccountID: "a1", TokenID: "t1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.TokenID != "t1" || e.EventType != "logout" {
		t.Fatalf("unexpected event %+v", e)
	}
}

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaSinkPublishesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	s := NewKafkaSink(w, time.Second, nil)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Emit(context.Background(), Event{Timestamp: ts, EventType: "role_changed", AccountID: "acct-1", ActorID: "admin-1"})

	if len(w.msgs) != 1 {
		t.Fatalf("published %d messages", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "acct-1" {
		t.Fatalf("key = %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "role_changed" {
		t.Fatalf("headers = %+v", msg.Headers)
	}
	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.ActorID != "admin-1" || !e.Timestamp.Equal(ts) {
		t.Fatalf("unexpected payload %+v", e)
	}
}

func TestKafkaSinkSwallowsErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	s := NewKafkaSink(w, 0, nil)
	s.Emit(context.Background(), Event{EventType: "login_failure"})
	if len(w.msgs) != 0 {
		t.Fatal("failed publish must not be recorded")
	}

	var nilSink *KafkaSink
	nilSink.Emit(context.Background(), Event{})
}

// stuckSink blocks until its context is canceled.
type stuckSink struct {
	calls atomic.Int32
}

func (s *stuckSink) Emit(ctx context.Context, _ Event) {
	s.calls.Add(1)
	<-ctx.Done()
}

func TestDispatcherCloseBoundedByDrainTimeout(t *testing.T) {
	sink := &stuckSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8, DrainTimeout: 50 * time.Millisecond}, sink)
	for i := 0; i < 4; i++ {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if d.Dropped() == 0 {
		t.Fatal("undelivered events must count as dropped")
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("boom") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Close()

	if got := d.Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	// first event occupies the worker, second fills the buffer
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "c"})

	if d.Dropped() == 0 {
		t.Fatal("emit abandoned on context expiry must count as dropped")
	}
}
