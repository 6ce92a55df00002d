package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"hark/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = filepath.Join(dir, "config.toml")
	cfg.Paths.PidPath = filepath.Join(dir, "hark.pid")
	if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
		t.Fatalf("save cfg: %v", err)
	}
	return cfg
}

func TestWaitForShutdownSucceedsWhenPidFileRemoved(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.Paths.PidPath, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Remove(cfg.Paths.PidPath)
	}()
	if err := waitForShutdown(cfg.Paths.ConfigPath, 2*time.Second); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestWaitForShutdownTimesOutOnAlivePid(t *testing.T) {
	cfg := testConfig(t)
	selfPid := os.Getpid()
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", selfPid)), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := waitForShutdown(cfg.Paths.ConfigPath, 300*time.Millisecond); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestEnsureNotRunning(t *testing.T) {
	cfg := testConfig(t)
	if err := ensureNotRunning(cfg); err != nil {
		t.Fatalf("no pid file: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureNotRunning(cfg); err == nil {
		t.Fatalf("expected already running")
	}
}

func TestServeFlagsBecomeEnvOverrides(t *testing.T) {
	t.Setenv("HARK_METRICS_ADDR", "")
	t.Setenv("HARK_HOOK_ENABLED", "")
	cmd := NewServeCmd(new(string))
	if err := cmd.Flags().Parse([]string{"--metrics-addr", "127.0.0.1:9999", "--no-hook"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := applyRunFlags(cmd); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if os.Getenv("HARK_METRICS_ADDR") != "127.0.0.1:9999" || os.Getenv("HARK_HOOK_ENABLED") != "0" {
		t.Fatalf("env not set: %q %q", os.Getenv("HARK_METRICS_ADDR"), os.Getenv("HARK_HOOK_ENABLED"))
	}
}

// deadPID is above any pid_max, so kill(2) reports ESRCH.
const deadPID = 2147483000

func TestRunFlagsEnv(t *testing.T) {
	cmd := NewStartCmd(new(string))
	if got := readRunFlags(cmd).env(); got != nil {
		t.Fatalf("no flags set, env %q", got)
	}
	if err := cmd.Flags().Parse([]string{"--no-hook", "--metrics-addr", ":9318"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"HARK_METRICS_ADDR=:9318", "HARK_HOOK_ENABLED=0"}
	if got := readRunFlags(cmd).env(); !reflect.DeepEqual(got, want) {
		t.Fatalf("env %q, want %q", got, want)
	}
}

func TestWaitForPIDSeesChildPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hark.pid")
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = os.WriteFile(path, []byte("4242\n"), 0o644)
	}()
	if err := waitForPID(path, 4242, 2*time.Second, make(chan error)); err != nil {
		t.Fatalf("waitForPID: %v", err)
	}
}

func TestWaitForPIDIgnoresOtherPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hark.pid")
	if err := os.WriteFile(path, []byte("7"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := waitForPID(path, 4242, 300*time.Millisecond, make(chan error)); err == nil {
		t.Fatalf("expected timeout for a pid file from another process")
	}
}

func TestWaitForPIDReportsEarlyExit(t *testing.T) {
	exited := make(chan error, 1)
	exited <- errors.New("exit status 1")
	err := waitForPID(filepath.Join(t.TempDir(), "hark.pid"), 4242, 5*time.Second, exited)
	if err == nil {
		t.Fatalf("expected error when serve exits")
	}
}

func TestStopDaemonRemovesStalePidFile(t *testing.T) {
	cfg := testConfig(t)
	if _, err := stopDaemon(cfg); !errors.Is(err, errNotRunning) {
		t.Fatalf("no pid file: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", deadPID)), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := stopDaemon(cfg); !errors.Is(err, errNotRunning) {
		t.Fatalf("stale pid: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.PidPath); !os.IsNotExist(err) {
		t.Fatalf("stale pid file left behind: %v", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Fatalf("own pid reported dead")
	}
	if processAlive(deadPID) || processAlive(0) {
		t.Fatalf("dead pid reported alive")
	}
}
