// Package daemon runs the listener pipeline as a background process: start
// re-executes the binary as "serve", which captures the mic, transcribes
// phrases and feeds closed lines to the hook until it receives SIGTERM.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"hark/internal/config"
	"hark/internal/logging"
	"hark/internal/run"

	"github.com/spf13/cobra"
)

// startTimeout bounds how long start waits for serve to write its pid file.
const startTimeout = 10 * time.Second

var errNotRunning = errors.New("hark is not running")

// runFlags are the per-run overrides shared by start and serve.
type runFlags struct {
	MetricsAddr string
	NoHook      bool
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-hook", false, "transcribe without running the hook on closed lines")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics at address (e.g., 127.0.0.1:9318)")
}

func readRunFlags(cmd *cobra.Command) runFlags {
	var f runFlags
	if fl := cmd.Flag("metrics-addr"); fl != nil {
		f.MetricsAddr = fl.Value.String()
	}
	if fl := cmd.Flag("no-hook"); fl != nil && fl.Changed {
		f.NoHook = fl.Value.String() != "false"
	}
	return f
}

// env returns the HARK_* overrides config.Load applies for these flags.
func (f runFlags) env() []string {
	var out []string
	if f.MetricsAddr != "" {
		out = append(out, "HARK_METRICS_ADDR="+f.MetricsAddr)
	}
	if f.NoHook {
		out = append(out, "HARK_HOOK_ENABLED=0")
	}
	return out
}

// NewStartCmd launches "hark serve" in the background and waits until the
// listener reports itself running through its pid file.
func NewStartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start listening in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pid, err := startDaemon(cfg, readRunFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("hark listening (pid %d), log: %s\n", pid, cfg.Paths.LogPath)
			return nil
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewServeCmd runs the listener pipeline in the foreground until SIGINT or
// SIGTERM. start and the service definitions invoke it.
func NewServeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "serve",
		Short:  "Run the listener daemon in the foreground (used by start and service)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			return run.Serve(cfg, logger)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// NewStopCmd asks the daemon to shut down. It finishes the transcription in
// flight and exits; a stale pid file is removed.
func NewStopCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pid, err := stopDaemon(cfg)
			if errors.Is(err, errNotRunning) {
				fmt.Println(err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("stop signal sent to pid %d\n", pid)
			return nil
		},
	}
}

// NewRestartCmd stops the listener, waits for it to exit and starts it again
// so config and model changes take effect.
func NewRestartCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the background listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if _, err := stopDaemon(cfg); err != nil && !errors.Is(err, errNotRunning) {
				return err
			}
			if err := waitForShutdown(*cfgPath, 5*time.Second); err != nil {
				return err
			}
			pid, err := startDaemon(cfg, readRunFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Printf("hark restarted (pid %d)\n", pid)
			return nil
		},
	}
	addRunFlags(cmd)
	return cmd
}

// applyRunFlags turns per-run flags into env overrides read by config.Load.
func applyRunFlags(cmd *cobra.Command) error {
	for _, kv := range readRunFlags(cmd).env() {
		k, v, _ := strings.Cut(kv, "=")
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

func startDaemon(cfg *config.Config, flags runFlags) (int, error) {
	if err := ensureNotRunning(cfg); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.PidPath), 0o755); err != nil {
		return 0, err
	}
	self, err := os.Executable()
	if err != nil {
		return 0, err
	}
	child := exec.Command(self, "serve", "--config", cfg.Paths.ConfigPath)
	child.Env = append(os.Environ(), flags.env()...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return 0, err
	}
	pid := child.Process.Pid
	exited := make(chan error, 1)
	go func() { exited <- child.Wait() }()
	if err := waitForPID(cfg.Paths.PidPath, pid, startTimeout, exited); err != nil {
		return 0, fmt.Errorf("%w (see %s)", err, cfg.Paths.LogPath)
	}
	return pid, nil
}

// waitForPID blocks until path holds pid, the child exits, or timeout passes.
func waitForPID(path string, pid int, timeout time.Duration, exited <-chan error) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got, err := readPID(path); err == nil && got == pid {
			return nil
		}
		select {
		case err := <-exited:
			if err == nil {
				return errors.New("hark serve exited before it started listening")
			}
			return fmt.Errorf("hark serve exited: %w", err)
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("hark serve did not start listening within %s", timeout)
}

func stopDaemon(cfg *config.Config) (int, error) {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return 0, errNotRunning
	}
	if !processAlive(pid) {
		_ = os.Remove(cfg.Paths.PidPath)
		return 0, errNotRunning
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return 0, fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return pid, nil
}

func ensureNotRunning(cfg *config.Config) error {
	pid, err := readPID(cfg.Paths.PidPath)
	if err != nil {
		return nil
	}
	if processAlive(pid) {
		return fmt.Errorf("already running with pid %d", pid)
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pid file %s: %w", path, err)
	}
	return pid, nil
}

func waitForShutdown(cfgPath string, timeout time.Duration) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pid, err := readPID(cfg.Paths.PidPath)
		if err != nil {
			return nil // pid file gone
		}
		if !processAlive(pid) {
			_ = os.Remove(cfg.Paths.PidPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("restart: daemon did not stop within %s", timeout)
}
