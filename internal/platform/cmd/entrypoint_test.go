package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Listen string `env:"HS4GATE_CMD_TEST_LISTEN" envDefault:"127.0.0.1:8081"`
	Mode   string `env:"HS4GATE_CMD_TEST_MODE" envDefault:"stdio"`
}

func TestParseConfigThenFlagsOverride(t *testing.T) {
	environ := map[string]string{
		"HS4GATE_CMD_TEST_LISTEN": "env:9000",
		"HS4GATE_CMD_TEST_MODE":   "http",
	}

	var cfg testConfig
	if err := ParseConfig(&cfg, environ); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "listen")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")

	if err := ParseArgs(fs, []string{"-listen", "flag:9001"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if cfg.Listen != "flag:9001" {
		t.Fatalf("expected flag listen, got %q", cfg.Listen)
	}
	if cfg.Mode != "http" {
		t.Fatalf("expected env mode, got %q", cfg.Mode)
	}
}

func TestParseConfigRejectsNil(t *testing.T) {
	if err := ParseConfig[testConfig](nil, nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected nil parser error")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	noop := func(context.Context) error { return nil }
	if err := RunWithTelemetry(context.Background(), " ", RunOptions{}, noop); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceMCP, RunOptions{}, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("HS4GATE_OTEL_ENDPOINT", "")
	want := errors.New("boom")
	err := RunWithTelemetry(context.Background(), ServiceMCP, RunOptions{}, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected run error, got %v", err)
	}
}
