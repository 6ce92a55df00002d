package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = "/tmp/config" // avoid creation

	t.Setenv("HARK_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("HARK_LOG_LEVEL", "debug")
	t.Setenv("HARK_LOG_FORMAT", "json")
	t.Setenv("HARK_HOOK_ENABLED", "true")
	t.Setenv("HARK_DEVICE", "USB")

	applyEnvOverrides(cfg)

	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
	if !cfg.Hook.Enabled {
		t.Fatalf("hook should be enabled via env")
	}
	if cfg.Audio.DeviceName != "USB" {
		t.Fatalf("device override failed: %q", cfg.Audio.DeviceName)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = path
	cfg.Hook.Command = "/bin/echo"
	cfg.Listener.PhraseTimeout = 1.5

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Hook.Command != "/bin/echo" {
		t.Fatalf("expected hook command to persist")
	}
	if loaded.PhraseTimeout() != 1500*time.Millisecond {
		t.Fatalf("phrase timeout got %v", loaded.PhraseTimeout())
	}
	if len(loaded.Transcribe.Temperature) != 6 {
		t.Fatalf("temperature schedule lost: %v", loaded.Transcribe.Temperature)
	}
}

func TestLoadWritesTemplateWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.ConfigPath != path {
		t.Fatalf("config path got %q", cfg.Paths.ConfigPath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
listener:
  record_timeout: 4
  phrase_timeout: 2.5
audio:
  device_name: pulse
  sample_rate: 16000
transcribe:
  language: de
  temperature: [0.0, 0.5]
  initial_prompt: "Meeting notes."
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RecordTimeout() != 4*time.Second {
		t.Fatalf("record timeout got %v", cfg.RecordTimeout())
	}
	if cfg.Audio.DeviceName != "pulse" || cfg.Transcribe.Language != "de" {
		t.Fatalf("yaml fields not applied: %+v %+v", cfg.Audio, cfg.Transcribe)
	}
	if len(cfg.Transcribe.Temperature) != 2 || cfg.Transcribe.Temperature[1] != 0.5 {
		t.Fatalf("temperature got %v", cfg.Transcribe.Temperature)
	}
	// untouched sections keep defaults
	if cfg.Listener.IdleBackoffMS != defaultIdleBackoffMS {
		t.Fatalf("idle backoff default lost: %d", cfg.Listener.IdleBackoffMS)
	}
}

func TestLoadMissingYAMLFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for missing yaml config")
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.Listener.RecordTimeout = 0
	cfg.Listener.PhraseTimeout = -1
	cfg.Hook.Enabled = true
	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"record_timeout", "phrase_timeout", "hook.command"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidateRejectsNaNTimeouts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := "[listener]\nrecord_timeout = nan\nphrase_timeout = nan\ntranscribe_timeout = nan\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = Validate(cfg)
	if err == nil {
		t.Fatalf("nan timeouts should not validate")
	}
	for _, want := range []string{"record_timeout", "phrase_timeout", "transcribe_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}
