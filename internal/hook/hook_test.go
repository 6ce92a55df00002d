package hook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hark/internal/config"
	"hark/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	return cfg
}

// recorder writes a script that dumps its arguments and HARK_TEXT to out.
func recorder(t *testing.T) (script, out string) {
	t.Helper()
	dir := t.TempDir()
	out = filepath.Join(dir, "out.txt")
	script = filepath.Join(dir, "hook.sh")
	body := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + out + "\nprintf 'text=%s\\n' \"$HARK_TEXT\" >> " + out + "\nprintf 'extra=%s\\n' \"$EXTRA\" >> " + out + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, out
}

func TestShouldRunCooldown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hook.Command = "/bin/echo"
	cfg.Hook.CooldownSec = 0.5
	r := NewRunner(cfg, logging.NewTestLogger())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if !r.ShouldRun() {
		t.Fatalf("first call should run")
	}
	if err := r.Run(context.Background(), Job{Text: "test", Timestamp: now}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.ShouldRun() {
		t.Fatalf("cooldown should block immediate subsequent run")
	}
	now = now.Add(600 * time.Millisecond)
	if !r.ShouldRun() {
		t.Fatalf("should run after cooldown")
	}
}

func TestRunUsesArgsPrefixAndEnv(t *testing.T) {
	cfg := testConfig(t)
	script, out := recorder(t)
	cfg.Hook.Command = script
	cfg.Hook.Args = []string{"--from"}
	cfg.Hook.ArgsLine = `--label "living room"`
	cfg.Hook.Prefix = "heard: "
	cfg.Hook.Env = map[string]string{"EXTRA": "yes"}

	r := NewRunner(cfg, logging.NewTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Run(ctx, Job{Text: "  turn on the lights ", Timestamp: time.Now()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := strings.Join([]string{
		"--from",
		"--label",
		"living room",
		"heard: turn on the lights",
		"text=turn on the lights",
		"extra=yes",
	}, "\n") + "\n"
	if string(data) != want {
		t.Fatalf("hook saw:\n%s\nwant:\n%s", data, want)
	}
}

func TestRunRedactsPII(t *testing.T) {
	cfg := testConfig(t)
	script, out := recorder(t)
	cfg.Hook.Command = script
	cfg.Hook.RedactPII = true

	r := NewRunner(cfg, logging.NewTestLogger())
	if err := r.Run(context.Background(), Job{Text: "mail bob@example.com now"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, _ := os.ReadFile(out)
	if strings.Contains(string(data), "bob@example.com") || !strings.Contains(string(data), "[redacted-email]") {
		t.Fatalf("pii not redacted: %s", data)
	}
}

func TestRunWithoutCommand(t *testing.T) {
	cfg := testConfig(t)
	r := NewRunner(cfg, logging.NewTestLogger())
	if err := r.Run(context.Background(), Job{Text: "x"}); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("expected ErrNoCommand, got %v", err)
	}
}

func TestRunReportsFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hook.Command = "/bin/false"
	r := NewRunner(cfg, logging.NewTestLogger())
	if err := r.Run(context.Background(), Job{Text: "x"}); err == nil {
		t.Fatalf("expected failure from /bin/false")
	}
}

func TestAccept(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hook.MinChars = 4
	r := NewRunner(cfg, logging.NewTestLogger())
	cases := map[string]bool{
		"":        false,
		"   ":     false,
		"hey":     false,
		"héllo":   true,
		" four  ": true,
	}
	for in, want := range cases {
		if got := r.Accept(in); got != want {
			t.Fatalf("Accept(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`-m "two words" --flag`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(args) != 3 || args[1] != "two words" {
		t.Fatalf("args %q", args)
	}
	if args, _ := ParseArgs("  "); len(args) != 0 {
		t.Fatalf("blank should parse to nothing")
	}
}
