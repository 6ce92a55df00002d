package control

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hark/internal/asr"
	"hark/internal/audio"
	"hark/internal/config"
	"hark/internal/hook"
	"hark/internal/logging"

	"github.com/spf13/cobra"
)

// NewTranscribeCmd transcribes a WAV file in one call and optionally fires the hook.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Transcribe a WAV file in one pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			samples, rate, err := audio.ReadWAVFile(args[0])
			if err != nil {
				return err
			}
			samples = audio.ResampleLinear(samples, rate, asr.SampleRate)

			opts, err := asr.NewOptions(cfg)
			if err != nil {
				return err
			}
			tr, err := asr.Open(opts, logger)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			start := time.Now()
			res, err := tr.Transcribe(cmd.Context(), samples, opts)
			if err != nil {
				return err
			}
			logger.WithField("latency", time.Since(start)).Infof("transcribed %s", args[0])

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			}

			if wantHook, _ := cmd.Flags().GetBool("hook"); !wantHook {
				return nil
			}
			r := hook.NewRunner(cfg, logger)
			if !r.Accept(res.Text) {
				return fmt.Errorf("skipped: text shorter than min_chars=%d", cfg.Hook.MinChars)
			}
			return r.Run(context.WithoutCancel(cmd.Context()), hook.Job{Text: res.Text, Timestamp: time.Now()})
		},
	}
	cmd.Flags().Bool("json", false, "print the full result with segments")
	cmd.Flags().Bool("hook", false, "also send the text through the configured hook")
	return cmd
}
