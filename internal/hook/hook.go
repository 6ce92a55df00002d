// Package hook runs the user's command for every completed transcript line.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"hark/internal/config"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// ErrNoCommand is returned when the hook is invoked without hook.command.
var ErrNoCommand = errors.New("no hook.command configured")

// Job represents a hook invocation request.
type Job struct {
	Text      string
	Timestamp time.Time
}

// Runner executes the hook with cooldown and prefix handling.
type Runner struct {
	cfg      *config.Config
	logger   logrus.FieldLogger
	lastRun  time.Time
	mu       sync.Mutex
	hostname string
	now      func() time.Time
}

func NewRunner(cfg *config.Config, logger logrus.FieldLogger) *Runner {
	host, _ := os.Hostname()
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		hostname: host,
		now:      time.Now,
	}
}

// Accept reports whether text is long enough to be worth sending.
func (r *Runner) Accept(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return utf8.RuneCountInString(text) >= r.cfg.Hook.MinChars
}

// ShouldRun returns whether cooldown allows a new hook.
func (r *Runner) ShouldRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.Hook.CooldownSec <= 0 || r.lastRun.IsZero() {
		return true
	}
	return r.now().Sub(r.lastRun).Seconds() >= r.cfg.Hook.CooldownSec
}

// Run executes the configured command with text as its last argument.
func (r *Runner) Run(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.lastRun = r.now()
	r.mu.Unlock()

	hk := r.cfg.Hook
	if strings.TrimSpace(hk.Command) == "" {
		return ErrNoCommand
	}
	extra, err := ParseArgs(hk.ArgsLine)
	if err != nil {
		return fmt.Errorf("hook.args_line: %w", err)
	}
	args := append(append([]string{}, hk.Args...), extra...)

	prefix := strings.ReplaceAll(hk.Prefix, "${hostname}", r.hostname)
	text := strings.TrimSpace(job.Text)
	if hk.RedactPII {
		text = redactPII(text)
	}
	args = append(args, strings.TrimSpace(prefix+text))

	runCtx := ctx
	if hk.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(float64(time.Second)*hk.TimeoutSec))
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, hk.Command, args...)
	cmd.Env = os.Environ()
	for k, v := range hk.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env,
		"HARK_TEXT="+text,
		"HARK_PREFIX="+prefix,
		"HARK_TIMESTAMP="+job.Timestamp.Format(time.RFC3339),
	)

	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		r.logger.Infof("hook output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

// ParseArgs splits a shell-style argument string.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

var (
	emailRE = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[A-Za-z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s\-\(\)]{6,}\d`)
)

func redactPII(s string) string {
	s = emailRE.ReplaceAllString(s, "[redacted-email]")
	s = phoneRE.ReplaceAllString(s, "[redacted-phone]")
	return s
}
