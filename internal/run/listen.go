package run

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"hark/internal/config"
	"hark/internal/listen"
	"hark/internal/metrics"

	"github.com/sirupsen/logrus"
)

// ListenOptions controls a foreground session.
type ListenOptions struct {
	File     string // replay this WAV instead of the microphone
	Realtime bool   // pace file replay at capture speed
	Out      io.Writer
}

// Listen runs one foreground session, redrawing the transcript on out, until
// interrupted or the input is exhausted. It returns the final transcript.
func Listen(ctx context.Context, cfg *config.Config, logger *logrus.Logger, lo ListenOptions) ([]string, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := OpenSource(cfg, lo.File, lo.Realtime, logger)
	if err != nil {
		return nil, err
	}
	m := metrics.New()
	p, err := NewPipeline(cfg, src, logger, listen.WithObserver(m))
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warnf("close pipeline: %v", err)
		}
	}()
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warnf("metrics server: %v", err)
			}
		}()
	}

	printer := NewPrinter(lo.Out, cfg.UI.ClearScreen)
	lines, err := p.Listener.Run(ctx, printer.Update)
	printer.Final(lines)
	return lines, err
}
