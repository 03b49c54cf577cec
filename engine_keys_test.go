package goFlag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/goFlag/internal"
)

func newVectorEngine(t *testing.T) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(testConfig()).
		WithInMemoryStorage().
		WithModuleProvider(newTestModules(t)).
		withKeyGenerator(vectorKeyGenerator).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestDeriveFlagKnownVector(t *testing.T) {
	engine := newVectorEngine(t)
	ctx := context.Background()

	flag, err := engine.DeriveFlag(ctx, "alice", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if flag != vectorFlag {
		t.Fatalf("expected %s, got %s", vectorFlag, flag)
	}

	pseudonym, err := engine.CSRFPseudonym(ctx, "alice", testDynamicModule)
	if err != nil {
		t.Fatalf("CSRFPseudonym failed: %v", err)
	}
	if pseudonym != vectorPseudonym {
		t.Fatalf("expected %s, got %s", vectorPseudonym, pseudonym)
	}

	ok, err := engine.VerifyFlag(ctx, "alice", testDynamicModule, "  "+vectorFlag+"\n")
	if err != nil || !ok {
		t.Fatalf("expected vector flag to verify, ok=%v err=%v", ok, err)
	}
}

func TestDeriveFlagSurvivesRestart(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := testConfig()
	ctx := context.Background()

	mr.Set("fg:kv:user:alice", string(vectorUserKey()))
	mr.Set("fg:kv:config:server_key", string(vectorServerKey()))

	first := newRedisTestEngine(t, cfg, rdb)
	flag, err := first.DeriveFlag(ctx, "alice", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if flag != vectorFlag {
		t.Fatalf("expected %s, got %s", vectorFlag, flag)
	}
	bobFirst, err := first.DeriveFlag(ctx, "bob", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	first.Close()

	second := newRedisTestEngine(t, cfg, rdb)
	bobSecond, err := second.DeriveFlag(ctx, "bob", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag after restart failed: %v", err)
	}
	if bobFirst != bobSecond {
		t.Fatal("generated keys must persist across engine instances")
	}
}

func TestDeriveFlagStaticModule(t *testing.T) {
	engine := newMemoryTestEngine(t, testConfig())

	_, err := engine.DeriveFlag(context.Background(), "u1", testStaticModule)
	if !errors.Is(err, ErrModuleNotDynamic) {
		t.Fatalf("expected ErrModuleNotDynamic, got %v", err)
	}
}

func TestDeriveFlagUnknownModule(t *testing.T) {
	engine := newMemoryTestEngine(t, testConfig())

	_, err := engine.DeriveFlag(context.Background(), "u1", "missing")
	if !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}

func TestDeriveRejectsEmptyInput(t *testing.T) {
	engine := newMemoryTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := engine.Derive(ctx, "", testDynamicModule, PurposeFlag); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
	if _, err := engine.Derive(ctx, "u1", testDynamicModule, ""); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
}

func TestPurposesAreSeparated(t *testing.T) {
	engine := newMemoryTestEngine(t, testConfig())
	ctx := context.Background()

	flag, err := engine.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	pseudonym, err := engine.CSRFPseudonym(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("CSRFPseudonym failed: %v", err)
	}
	if "flag{"+pseudonym+"}" == flag {
		t.Fatal("purposes must yield unrelated outputs")
	}
}

func TestRotateServerKeyChangesFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := newCaptureSink(8)
	engine := buildAuditTestEngine(t, cfg, sink)
	ctx := context.Background()

	before, err := engine.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if err := engine.RotateServerKey(ctx); err != nil {
		t.Fatalf("RotateServerKey failed: %v", err)
	}
	after, err := engine.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if before == after {
		t.Fatal("rotation must change derived flags")
	}

	ok, err := engine.VerifyFlag(ctx, "u1", testDynamicModule, before)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatal("flag derived before rotation must not verify")
	}

	ev := waitForEvent(t, sink, auditEventServerKeyRotated)
	if !ev.Success {
		t.Fatal("expected successful rotation event")
	}
}

func TestRotateServerKeySeenByUncachedInstance(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := MultiInstanceConfig()
	a := newRedisTestEngine(t, cfg, rdb)
	b := newRedisTestEngine(t, cfg, rdb)
	ctx := context.Background()

	before, err := b.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if err := a.RotateServerKey(ctx); err != nil {
		t.Fatalf("RotateServerKey failed: %v", err)
	}
	after, err := b.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if before == after {
		t.Fatal("uncached instance must observe rotation")
	}
}

func TestReloadServerKeyPicksUpRemoteRotation(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Keys.CacheServerKey = true
	a := newRedisTestEngine(t, cfg, rdb)
	b := newRedisTestEngine(t, cfg, rdb)
	ctx := context.Background()

	before, err := b.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	if err := a.RotateServerKey(ctx); err != nil {
		t.Fatalf("RotateServerKey failed: %v", err)
	}
	stale, _ := b.DeriveFlag(ctx, "u1", testDynamicModule)
	if stale != before {
		t.Fatal("cached instance should keep its key until reloaded")
	}

	if err := b.ReloadServerKey(ctx); err != nil {
		t.Fatalf("ReloadServerKey failed: %v", err)
	}
	fresh, err := b.DeriveFlag(ctx, "u1", testDynamicModule)
	if err != nil {
		t.Fatalf("DeriveFlag failed: %v", err)
	}
	want, _ := a.DeriveFlag(ctx, "u1", testDynamicModule)
	if fresh == before || fresh != want {
		t.Fatalf("reloaded instance must agree with the rotating one: got %q want %q", fresh, want)
	}
}

func TestUserKeyStable(t *testing.T) {
	engine := newMemoryTestEngine(t, testConfig())
	ctx := context.Background()

	a, err := engine.UserKey(ctx, "u1")
	if err != nil {
		t.Fatalf("UserKey failed: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-byte key, got %d", len(a))
	}
	b, err := engine.UserKey(ctx, "u1")
	if err != nil {
		t.Fatalf("UserKey failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("user key changed between calls")
	}
	if _, err := engine.UserKey(ctx, ""); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
}

func TestKeyGenerationFailure(t *testing.T) {
	failing := func(int) ([]byte, error) {
		return nil, fmt.Errorf("%w: entropy exhausted", internal.ErrRNGFailure)
	}
	engine, err := New().
		WithConfig(testConfig()).
		WithInMemoryStorage().
		WithModuleProvider(newTestModules(t)).
		withKeyGenerator(failing).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	if _, err := engine.DeriveFlag(ctx, "u1", testDynamicModule); !errors.Is(err, ErrRNGFailure) {
		t.Fatalf("expected ErrRNGFailure, got %v", err)
	}
	if _, err := engine.NewModuleKey(); !errors.Is(err, ErrRNGFailure) {
		t.Fatalf("expected ErrRNGFailure, got %v", err)
	}
}

func TestNewModuleKeyLength(t *testing.T) {
	cfg := testConfig()
	cfg.Keys.ModuleKeyLength = 24
	engine := newMemoryTestEngine(t, cfg)

	a, err := engine.NewModuleKey()
	if err != nil {
		t.Fatalf("NewModuleKey failed: %v", err)
	}
	b, _ := engine.NewModuleKey()
	if len(a) != 24 {
		t.Fatalf("expected 24 bytes, got %d", len(a))
	}
	if bytes.Equal(a, b) {
		t.Fatal("module keys must be random")
	}
}
