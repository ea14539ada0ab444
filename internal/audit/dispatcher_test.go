package audit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "code_issued"})
	}
	d.Close()

	if n := len(sink.Events()); n != 3 {
		t.Fatalf("delivered %d events, want 3", n)
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if n := len(sink.Events()); n != 3 {
		t.Fatalf("emit after close delivered: %d", n)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event parks in the sink, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops")
	}

	close(sink.release)
	d.Close()
	if got := uint64(sink.count()) + d.Dropped(); got != 10 {
		t.Fatalf("delivered+dropped = %d, want 10", got)
	}
}

type panickingSink struct{}

func (panickingSink) Emit(context.Context, Event) { panic("sink exploded") }

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panickingSink{})
	d.Emit(context.Background(), Event{EventType: "code_issued"})
	d.Emit(context.Background(), Event{EventType: "code_issued"})
	d.Close()
	if d.Delivered() != 0 {
		t.Fatalf("delivered = %d, want 0", d.Delivered())
	}
}

type deadlineSink struct {
	mu          sync.Mutex
	hadDeadline bool
}

func (s *deadlineSink) Emit(ctx context.Context, _ Event) {
	_, ok := ctx.Deadline()
	s.mu.Lock()
	s.hadDeadline = ok
	s.mu.Unlock()
}

func TestDispatcherBoundsSinkCalls(t *testing.T) {
	sink := &deadlineSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, SinkTimeout: time.Second}, sink)
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !sink.hadDeadline {
		t.Fatal("sink context has no deadline")
	}
	if d.Delivered() != 1 {
		t.Fatalf("delivered = %d, want 1", d.Delivered())
	}
}

func TestDispatcherReportsDropsToHook(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	var (
		mu    sync.Mutex
		types []string
	)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink,
		WithOnDrop(func(eventType string) {
			mu.Lock()
			types = append(types, eventType)
			mu.Unlock()
		}))

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "account_locked"})
	}
	close(sink.release)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if uint64(len(types)) != d.Dropped() {
		t.Fatalf("hook saw %d drops, counter %d", len(types), d.Dropped())
	}
	for _, typ := range types {
		if typ != "account_locked" {
			t.Fatalf("unexpected event type %q", typ)
		}
	}
}

func TestBlockingEmitHonoursContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{EventType: "a"})
	// wait until the loop has taken the first event so the buffer has one slot
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "c"})
	if d.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", d.Dropped())
	}

	close(sink.release)
	d.Close()
}
