package goFlag

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	internalaudit "github.com/MrEthical07/goFlag/internal/audit"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func buildAuditTestEngine(t *testing.T, cfg Config, sink AuditSink) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithInMemoryStorage().
		WithModuleProvider(newTestModules(t)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// waitForEvent drains sink until an event of the given type arrives.
func waitForEvent(t *testing.T, sink *captureSink, eventType string) AuditEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.events:
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("expected %s audit event", eventType)
			return AuditEvent{}
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine := buildAuditTestEngine(t, cfg, sink)

	_, _ = engine.Submit(context.Background(), "u1", testStaticModule, "wrong")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditSubmissionEventFields(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	sink := newCaptureSink(16)
	engine := buildAuditTestEngine(t, cfg, sink)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	sub, err := engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ev := waitForEvent(t, sink, auditEventSubmissionValid)
	if ev.UserID != "u1" || ev.ModuleID != testStaticModule {
		t.Fatalf("unexpected subject: %+v", ev)
	}
	if ev.IP != "198.51.100.33" {
		t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
	}
	if !ev.Success {
		t.Fatal("expected success flag")
	}
	if ev.Metadata["submission_id"] != sub.ID {
		t.Fatalf("expected submission_id %q, got %q", sub.ID, ev.Metadata["submission_id"])
	}
}

func TestAuditRateLimitAndDuplicateEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	cfg.Audit.DropIfFull = false

	sink := newCaptureSink(16)
	engine := buildAuditTestEngine(t, cfg, sink)
	ctx := context.Background()

	_, _ = engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)
	_, _ = engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)

	dup := waitForEvent(t, sink, auditEventModuleAlreadySolved)
	if dup.Error != string(auditErrAlreadySolved) {
		t.Fatalf("expected %q, got %q", auditErrAlreadySolved, dup.Error)
	}

	_, _ = engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)
	_, _ = engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)

	limited := waitForEvent(t, sink, auditEventSubmissionRateLimited)
	if limited.Success || limited.Error != string(auditErrRateLimited) {
		t.Fatalf("unexpected rate limit event: %+v", limited)
	}
}

func TestAuditNoFlagsInEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false
	cfg.Submission.Capacity = 10
	cfg.InvalidSubmission.Capacity = 10

	sink := newCaptureSink(32)
	engine := buildAuditTestEngine(t, cfg, sink)
	ctx := context.Background()

	dynamic, err := engine.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	wrong := "flag{not-the-right-one}"
	_, _ = engine.Submit(ctx, "u1", testDynamicModule, wrong)
	_, _ = engine.Submit(ctx, "u1", testDynamicModule, dynamic)
	_, _ = engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)

	events := make([]AuditEvent, 0, 3)
	timeout := time.After(2 * time.Second)
collectLoop:
	for len(events) < 3 {
		select {
		case ev := <-sink.events:
			events = append(events, ev)
		case <-timeout:
			break collectLoop
		}
	}
	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}

	needles := []string{dynamic, wrong, testStaticFlag}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("flag leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("flag leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestEngineAuditDroppedByType(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true
	cfg.Submission.Capacity = 10
	cfg.InvalidSubmission.Capacity = 10

	sink := newGateSink()
	engine := buildAuditTestEngine(t, cfg, sink)
	defer close(sink.gate)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = engine.Submit(ctx, "u1", testStaticModule, "wrong")
	}
	_, _ = engine.Submit(ctx, "u1", testStaticModule, testStaticFlag)

	byType := engine.AuditDroppedByType()
	var sum uint64
	for _, n := range byType {
		sum += n
	}
	if sum != engine.AuditDropped() || sum < 3 {
		t.Fatalf("per-type drops %v do not add up to %d", byType, engine.AuditDropped())
	}
	if byType[auditEventSubmissionValid] != 1 {
		t.Fatalf("expected the solve event to be dropped and attributed, got %v", byType)
	}
	if got := engine.AuditStats().Dropped; got != sum {
		t.Fatalf("AuditStats dropped %d, want %d", got, sum)
	}
}

func TestEngineAuditStatsDisabled(t *testing.T) {
	engine := newMemoryTestEngine(t, testConfig())
	if s := engine.AuditStats(); s != (AuditStats{}) {
		t.Fatalf("expected zero stats with audit disabled, got %+v", s)
	}
	if len(engine.AuditDroppedByType()) != 0 {
		t.Fatal("expected no drops with audit disabled")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventSubmissionInvalid,
		UserID:    "u1",
		ModuleID:  testStaticModule,
		IP:        "127.0.0.1",
	})

	if !buf.Contains("flag_submission_invalid") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"module_id\":\"static-1\"") {
		t.Fatal("expected JSON log line to contain module id")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
