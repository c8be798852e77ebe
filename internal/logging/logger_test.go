package logging

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected nop logger when no level is configured")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !core.Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestInitializeJSON(t *testing.T) {
	if err := InitializeFormat("debug", "json"); err != nil {
		t.Fatalf("InitializeFormat() error = %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled")
	}
}

func TestLogChannelEventOmitsPayload(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	LogChannelEvent("c1", "received", "connect_wifi", 42)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event"] != "connect_wifi" {
		t.Errorf("event field = %v", fields["event"])
	}
	if _, ok := fields["content"]; ok {
		t.Error("payload content must not be logged")
	}
}

func TestLogTransition(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	LogTransition("idle", "scanning", 3)

	if logs.FilterField(zap.String("to", "scanning")).Len() != 1 {
		t.Error("transition entry not found")
	}
}

func TestConcurrentUse(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Debug("concurrent")
		}()
		go func() {
			defer wg.Done()
			SetLogger(zap.NewNop())
		}()
	}
	wg.Wait()

	if GetLogger() == nil {
		t.Fatal("GetLogger() returned nil")
	}
}
