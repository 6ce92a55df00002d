package doctor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hark/internal/audio"
	"hark/internal/config"
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

func byName(results []Result) map[string]Result {
	m := map[string]Result{}
	for _, r := range results {
		m[r.Name] = r
	}
	return m
}

func TestRunReportsMissingModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transcribe.ModelPath = filepath.Join(t.TempDir(), "nope.bin")
	got := byName(Run(cfg))
	if got["model file"].Pass {
		t.Fatalf("missing model should fail")
	}
	if !got["config"].Pass || !got["transcribe"].Pass {
		t.Fatalf("defaults should be valid: %+v", got)
	}
	if _, ok := got["hook.command"]; ok {
		t.Fatalf("hook check should only run when the hook is enabled")
	}
}

func TestRunFlagsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listener.PhraseTimeout = 0
	cfg.Hook.Enabled = true
	got := byName(Run(cfg))
	if got["config"].Pass {
		t.Fatalf("invalid config should fail")
	}
	if r, ok := got["hook.command"]; !ok || r.Pass {
		t.Fatalf("enabled hook without command should fail: %+v", r)
	}
}

func TestCheckHookExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if checkHookExecutable(script).Pass {
		t.Fatalf("non-executable script should fail")
	}
	if err := os.Chmod(script, 0o755); err != nil {
		t.Fatal(err)
	}
	if !checkHookExecutable(script).Pass {
		t.Fatalf("executable script should pass")
	}
	if checkHookExecutable(dir).Pass {
		t.Fatalf("directory should fail")
	}
}

func TestCheckCapture(t *testing.T) {
	if r := checkCapture(func() error { return nil }); !r.Pass {
		t.Fatalf("probe ok should pass")
	}
	if r := checkCapture(func() error { return audio.ErrNoCapture }); r.Pass || r.Detail != "this binary was built without -tags whisper" {
		t.Fatalf("stub build: %+v", r)
	}
	if r := checkCapture(func() error { return errors.New("no default input device") }); r.Pass {
		t.Fatalf("probe error should fail")
	}
}
