package doctor

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"hark/internal/asr"
	"hark/internal/audio"
	"hark/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkConfig(cfg),
		checkFile("model file", cfg.Transcribe.ModelPath),
		checkOptions(cfg),
	}
	if cfg.Hook.Enabled {
		results = append(results, checkHookExecutable(cfg.Hook.Command))
	}
	results = append(results, checkPortAudioPkgConfig(), checkCapture(audio.Probe))
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkConfig(cfg *config.Config) Result {
	if err := config.Validate(cfg); err != nil {
		return Result{Name: "config", Pass: false, Detail: strings.ReplaceAll(err.Error(), "\n", "; ")}
	}
	return Result{Name: "config", Pass: true, Detail: "valid"}
}

func checkOptions(cfg *config.Config) Result {
	opts, err := asr.NewOptions(cfg)
	if err != nil {
		return Result{Name: "transcribe", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "transcribe", Pass: true, Detail: "language " + opts.Language}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio / apt install portaudio19-dev)"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}

func checkCapture(probe func() error) Result {
	if err := probe(); err != nil {
		if errors.Is(err, audio.ErrNoCapture) {
			return Result{Name: "capture", Pass: false, Detail: "this binary was built without -tags whisper"}
		}
		return Result{Name: "capture", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "capture", Pass: true, Detail: "input device available"}
}
