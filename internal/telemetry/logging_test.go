package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestLogLevel_ReadsEnvVar(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"BOGUS": slog.LevelInfo,
	}
	for val, want := range cases {
		t.Setenv("LOG_LEVEL", val)
		if got := LogLevel(); got != want {
			t.Errorf("LogLevel() with LOG_LEVEL=%q = %v, want %v", val, got, want)
		}
	}
}

func TestFromContext_FallsBackToDefaultLogger(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Fatal("expected FromContext to return the default logger when none is set")
	}
}

func TestWithLogger_RoundTripsThroughContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("expected FromContext to return the exact logger stored by WithLogger")
	}
}

func TestWithTriggerKey_FormatsGroupSlashName(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTriggerKey(slog.New(slog.NewTextHandler(&buf, nil)), "reports", "daily")
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
	logger.Info("probe")
	if !strings.Contains(buf.String(), "trigger_key=reports/daily") {
		t.Errorf("expected trigger_key=reports/daily in %q", buf.String())
	}
}

func TestWithJobKey_FormatsGroupSlashName(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJobKey(slog.New(slog.NewTextHandler(&buf, nil)), "reports", "daily")
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
	logger.Info("probe")
	if !strings.Contains(buf.String(), "job_key=reports/daily") {
		t.Errorf("expected job_key=reports/daily in %q", buf.String())
	}
}
