package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"hark/internal/asr"
	"hark/internal/config"
	"hark/internal/control"
	"hark/internal/hook"
	"hark/internal/listen"
	"hark/internal/metrics"

	"github.com/sirupsen/logrus"
)

// Server manages the listener, hook dispatch, metrics, and control endpoints.
type Server struct {
	cfg       *config.Config
	logger    logrus.FieldLogger
	hook      *hook.Runner
	metrics   *metrics.Metrics
	listener  *listen.Listener
	startedAt time.Time
	now       func() time.Time

	mu          sync.Mutex
	lines       []string
	transcripts []control.Transcript
	lastHeard   time.Time

	hookCh chan hook.Job
	wg     sync.WaitGroup
}

func newServer(cfg *config.Config, logger logrus.FieldLogger) *Server {
	return &Server{
		cfg:         cfg,
		logger:      logger,
		hook:        hook.NewRunner(cfg, logger),
		metrics:     metrics.New(),
		startedAt:   time.Now(),
		now:         time.Now,
		transcripts: make([]control.Transcript, 0, cfg.UI.StatusTail),
		hookCh:      make(chan hook.Job, max(1, cfg.Hook.QueueSize)),
	}
}

// Serve runs the daemon until interrupted or until capture fails.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	srv := newServer(cfg, logger)
	src, err := OpenSource(cfg, "", false, logger)
	if err != nil {
		return err
	}
	p, err := NewPipeline(cfg, src, logger,
		listen.WithObserver(srv.metrics),
		listen.WithClosedLine(srv.handleClosed))
	if err != nil {
		_ = src.Close()
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warnf("close pipeline: %v", err)
		}
	}()
	srv.listener = p.Listener

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.controlLoop(ctx)

	srv.wg.Add(1)
	go srv.hookWorker(ctx)

	if cfg.Metrics.Enabled {
		go func() {
			if err := srv.metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Warnf("metrics server: %v", err)
			}
		}()
	}

	listenErr := make(chan error, 1)
	go func() {
		_, err := p.Listener.Run(ctx, srv.handleUpdate)
		listenErr <- err
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case s := <-sigCh:
		logger.Infof("received signal %s, shutting down", s)
		cancel()
		runErr = <-listenErr
	case runErr = <-listenErr:
		cancel()
	}
	srv.wg.Wait()
	return runErr
}

// handleUpdate records the live transcript for status queries.
func (s *Server) handleUpdate(lines []string, _ asr.Result) {
	tail := lines
	if n := s.cfg.UI.StatusTail; n > 0 && len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	s.mu.Lock()
	s.lines = append(s.lines[:0], tail...)
	s.lastHeard = s.now()
	s.mu.Unlock()
}

// handleClosed queues a finished line for the hook.
func (s *Server) handleClosed(line string) {
	text := strings.TrimSpace(line)
	if text == "" {
		return
	}
	s.logger.Infof("heard: %q", text)
	s.recordTranscript(text)
	if !s.cfg.Hook.Enabled {
		return
	}
	if !s.hook.Accept(text) {
		s.logger.Debugf("hook skipped (shorter than %d chars)", s.cfg.Hook.MinChars)
		s.metrics.HooksSkipped.Inc()
		return
	}
	if !s.hook.ShouldRun() {
		s.logger.Debug("hook skipped (cooldown)")
		s.metrics.HooksSkipped.Inc()
		return
	}
	job := hook.Job{
		Text:      text,
		Timestamp: s.now(),
	}
	select {
	case s.hookCh <- job:
	default:
		s.metrics.HooksDropped.Inc()
		s.logger.Warn("hook queue full, dropping job")
	}
}

func (s *Server) recordTranscript(text string) {
	entry := control.Transcript{
		Text:      text,
		Timestamp: s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, entry)
	if n := s.cfg.UI.StatusTail; n > 0 && len(s.transcripts) > n {
		s.transcripts = s.transcripts[len(s.transcripts)-n:]
	}
}

func (s *Server) status() control.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := control.Status{
		Running:     true,
		UptimeSec:   s.now().Sub(s.startedAt).Seconds(),
		Lines:       append([]string(nil), s.lines...),
		Transcripts: append([]control.Transcript(nil), s.transcripts...),
		State:       "starting",
	}
	if !s.lastHeard.IsZero() {
		st.LastHeardSec = s.now().Sub(s.lastHeard).Seconds()
	}
	if s.listener != nil {
		st.Session = s.listener.Session()
		st.State = s.listener.State().String()
		st.QueueDepth = s.listener.QueueLen()
	}
	return st
}

func (s *Server) controlLoop(ctx context.Context) {
	ln, err := net.Listen("unix", s.cfg.Paths.SocketPath)
	if err != nil {
		s.logger.Errorf("control listen: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: "bad request"})
		return
	}
	switch req.Op {
	case control.OpStatus:
		_ = json.NewEncoder(conn).Encode(s.status())
	case control.OpHealth:
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: true, Message: "ok"})
	default:
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: fmt.Sprintf("unknown op %q", req.Op)})
	}
}
