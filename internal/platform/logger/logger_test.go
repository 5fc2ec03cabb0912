package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	kit "github.com/shanehull/idxscraper/internal/platform/testkit"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"off", "disabled"},
		{"", "info"},
		{"   nonsense   ", "info"},
	}
	for _, c := range cases {
		lvl := parseLevel(c.in)
		if strings.ToLower(lvl.String()) != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, lvl, c.want)
		}
	}
}

func TestInit_Named_C_WithRun(t *testing.T) {
	var buf bytes.Buffer

	Init(Options{
		Level:        "debug",
		Format:       "console",
		Service:      "svc-a",
		Writer:       &buf,
		StaticFields: map[string]string{"build": "test"},
	})

	Get().Info().Str("k", "v").Msg("root-msg")
	Named("idx").Info().Msg("named-msg")

	ctx := WithRun(context.Background(), "run-123")
	C(ctx).Info().Msg("ctx-msg")
	C(context.Background()).Debug().Msg("ctx-empty")

	out := buf.String()
	kit.MustContain(t, out, "root-msg")
	kit.MustContain(t, out, "named-msg")
	kit.MustContain(t, out, "component=")
	kit.MustContain(t, out, "idx")
	kit.MustContain(t, out, "run_id=")
	kit.MustContain(t, out, "run-123")
	kit.MustContain(t, out, "service=")
	kit.MustContain(t, out, "svc-a")
	kit.MustContain(t, out, "build=")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_SERVICE", "svc-b")
	t.Setenv("LOG_CALLER", "yes")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || opt.Service != "svc-b" || !opt.WithCaller {
		t.Fatalf("FromEnv mismatch: %+v", opt)
	}
}

func TestRunID_Empty(t *testing.T) {
	ctx := WithRun(context.Background(), "")
	if got := RunID(ctx); got != "" {
		t.Fatalf("RunID = %q, want empty", got)
	}
}
