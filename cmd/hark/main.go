package main

import (
	"fmt"
	"os"

	"hark/internal/control"
	"hark/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hark",
		Short: "Hark - continuous local speech-to-text",
		Long: `Hark captures speech from your mic, transcribes it locally with whisper.cpp,
and keeps a live transcript: a pause longer than phrase_timeout starts a new line.
Each finished line can be sent to a hook command.

Key commands:
  listen [--file f.wav]     Foreground transcript (clears and redraws)
  start|stop|restart        Daemon lifecycle
  status [--json]           Uptime, state + recent lines
  mic list|set              Select microphone (alias: microphone, mics)
  models list|download|set  Manage whisper.cpp models
  transcribe <wav>          One-shot transcription of a file
  doctor                    Check deps / config / model
  service install|uninstall|status   Login service (launchd / systemd --user)
  health|tail-log|test-hook Liveness, log tail, manual hook

Notable flags/env:
  --metrics-addr <addr>     Enable /metrics (Prometheus)
  Env overrides: HARK_METRICS_ADDR, HARK_LOG_LEVEL/FORMAT, HARK_HOOK_ENABLED,
                 HARK_MODEL_PATH, HARK_DEVICE`,
		Example: `  hark listen
  hark listen --file meeting.wav --phrase-timeout 2
  hark start --metrics-addr 127.0.0.1:9318
  hark models download ggml-base.en.bin
  hark test-hook "turn on the lights"`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		SilenceErrors:         true,
	}

	root.Version = version
	root.SetVersionTemplate("Hark v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML, or YAML by extension). Defaults to ~/.config/hark/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(daemon.NewListenCmd(cfgPath))
	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewConfigCmd(cfgPath))
	root.AddCommand(control.NewServiceCmd(cfgPath))

	// Foreground daemon used by start and the service definitions.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)
	return root
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%sHark%s - continuous local speech-to-text %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sListens on your mic, transcribes locally, and keeps a line-per-phrase transcript.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  hark [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  listen [--file f.wav]       foreground transcript")
		writeln("  start|stop|restart          daemon lifecycle")
		writeln("  status [--json]             uptime, state + recent lines")
		writeln("  mic list|set                select input device")
		writeln("  models list|download|set    manage whisper.cpp models")
		writeln("  transcribe <wav>            one-shot file transcription")
		writeln("  doctor                      check deps/model/hook/portaudio")
		writeln("  service install|uninstall   login service (launchd / systemd --user)")
		writeln("  health                      control-socket liveness ping")
		writeln("  tail-log                    show last log lines")
		writeln("  test-hook \"text\"            invoke hook manually")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus)")
		writeln("  -c, --config <path>     config file (default ~/.config/hark/config.toml)")
		writeln("  Env: HARK_METRICS_ADDR=host:port, HARK_LOG_LEVEL=debug, HARK_LOG_FORMAT=json,")
		writeln("       HARK_HOOK_ENABLED=0, HARK_MODEL_PATH=..., HARK_DEVICE=name")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  hark listen")
		writeln("  hark listen --file meeting.wav --phrase-timeout 2")
		writeln("  hark start --metrics-addr 127.0.0.1:9318")
		writeln("  hark models download ggml-base.en.bin")
		writeln("  hark test-hook \"turn on the lights\"")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
