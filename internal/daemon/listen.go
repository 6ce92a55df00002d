package daemon

import (
	"hark/internal/config"
	"hark/internal/logging"
	"hark/internal/run"

	"github.com/spf13/cobra"
)

// NewListenCmd runs a foreground session that redraws the transcript.
func NewListenCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe the microphone (or a WAV file) in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd); err != nil {
				return err
			}
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flag("record-timeout").Changed {
				cfg.Listener.RecordTimeout, _ = cmd.Flags().GetFloat64("record-timeout")
			}
			if cmd.Flag("phrase-timeout").Changed {
				cfg.Listener.PhraseTimeout, _ = cmd.Flags().GetFloat64("phrase-timeout")
			}
			if cmd.Flag("energy-threshold").Changed {
				cfg.Audio.EnergyThreshold, _ = cmd.Flags().GetFloat64("energy-threshold")
			}
			if cmd.Flag("no-clear").Changed {
				cfg.UI.ClearScreen = false
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			file, _ := cmd.Flags().GetString("file")
			realtime, _ := cmd.Flags().GetBool("realtime")
			_, err = run.Listen(cmd.Context(), cfg, logger, run.ListenOptions{
				File:     file,
				Realtime: realtime,
				Out:      cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().String("file", "", "replay a WAV file instead of the microphone")
	cmd.Flags().Bool("realtime", false, "pace --file replay at capture speed")
	cmd.Flags().Float64("record-timeout", 0, "seconds of audio per captured chunk")
	cmd.Flags().Float64("phrase-timeout", 0, "silence in seconds that starts a new line")
	cmd.Flags().Float64("energy-threshold", 0, "RMS energy needed to count as speech")
	cmd.Flags().Bool("no-clear", false, "append updates instead of redrawing the screen")
	cmd.Flags().String("metrics-addr", "", "enable metrics at address for this run")
	return cmd
}
