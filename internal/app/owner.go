package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/dpt/internal/assistant"
	"github.com/rbright/dpt/internal/calendar"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/dictionary"
	"github.com/rbright/dpt/internal/indicator"
	"github.com/rbright/dpt/internal/ipc"
	"github.com/rbright/dpt/internal/output"
	"github.com/rbright/dpt/internal/pipeline"
	"github.com/rbright/dpt/internal/schedule"
	"github.com/rbright/dpt/internal/session"
	"github.com/rbright/dpt/internal/voice"
)

// domain is the offline half of the runtime: dictionary, parser and calendar.
type domain struct {
	cfg      config.Config
	location *time.Location
	dict     *dictionary.Dictionary
	parser   *schedule.Parser
	calendar *calendar.Calendar
}

func openDomain(ctx context.Context, cfg config.Config, logger *slog.Logger) (*domain, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Parser.Timezone, err)
	}

	store, err := dictionary.OpenStore(ctx, cfg.Dictionary.Store)
	if err != nil {
		return nil, fmt.Errorf("open dictionary store: %w", err)
	}
	dict, err := dictionary.Load(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := seedDictionary(ctx, dict, cfg.Dictionary.Seed, logger); err != nil {
		_ = dict.Close()
		return nil, err
	}

	cal, err := calendar.Open(calendar.Options{
		Path:   config.ExpandUser(cfg.Calendar.ICSPath),
		Name:   cfg.Calendar.Name,
		Logger: logger,
	})
	if err != nil {
		_ = dict.Close()
		return nil, err
	}

	return &domain{
		cfg:      cfg,
		location: location,
		dict:     dict,
		parser:   schedule.New(dict),
		calendar: cal,
	}, nil
}

// seedDictionary imports the seed file into an empty dictionary.
func seedDictionary(ctx context.Context, dict *dictionary.Dictionary, path string, logger *slog.Logger) error {
	path = strings.TrimSpace(path)
	if path == "" || dict.Len() > 0 {
		return nil
	}
	file, err := os.Open(config.ExpandUser(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("dictionary seed not found", "path", path)
			return nil
		}
		return fmt.Errorf("open dictionary seed: %w", err)
	}
	defer file.Close()

	count, err := dict.Import(ctx, file)
	if err != nil {
		return err
	}
	logger.Info("dictionary seeded", "path", path, "entries", count)
	return nil
}

func (d *domain) Close() {
	_ = d.dict.Close()
}

func (d *domain) defaultDuration() time.Duration {
	return time.Duration(d.cfg.Parser.DefaultDurationMinutes) * time.Minute
}

// owner bundles everything the socket owner runs.
type owner struct {
	domain     *domain
	notifier   *indicator.Notifier
	voice      *voice.Session
	assistant  *assistant.Assistant
	controller *session.Controller
}

type ownerOptions struct {
	keepAlive bool
	observers []voice.Observer
	onResult  func(assistant.Result)
}

func buildOwner(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ownerOptions) (*owner, error) {
	dom, err := openDomain(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier := indicator.New(cfg.Indicator, logger)
	observers := append([]voice.Observer{notifier}, opts.observers...)

	phrases := cfg.Wake.Phrases
	if len(phrases) == 0 {
		phrases = voice.DefaultWakePhrases
	}

	sess := voice.New(pipeline.NewRecognizer(cfg, logger), voice.Options{
		Microphone:      pipeline.NewMicrophone(cfg.Audio, logger),
		Synthesizer:     pipeline.NewSynthesizer(cfg, logger),
		Notifier:        notifier,
		Observer:        voice.JoinObservers(observers...),
		Wake:            voice.NewWakeDetector(phrases, cfg.Wake.Threshold),
		Logger:          logger,
		Locale:          cfg.Voice.Locale,
		RestartDelay:    cfg.Voice.RestartDelay(),
		MeterInterval:   cfg.Voice.MeterInterval(),
		Acknowledgement: cfg.Voice.Acknowledgement,
		ActiveHintText:  cfg.Voice.ActiveHintText,
		PermissionText:  cfg.Voice.PermissionText,
		FailureText:     cfg.Voice.FailureText,
	})

	asst, err := assistant.New(assistant.Options{
		Parser:           dom.parser,
		Sink:             dom.calendar,
		Speaker:          sess,
		Usage:            dom.dict,
		Location:         dom.location,
		AutoThreshold:    cfg.Parser.AutoThreshold,
		ConfirmThreshold: cfg.Parser.ConfirmThreshold,
		DefaultDuration:  dom.defaultDuration(),
		Logger:           logger,
		OnResult:         opts.onResult,
	})
	if err != nil {
		notifier.Close()
		dom.Close()
		return nil, err
	}

	controller := session.NewController(sess, session.Options{
		Logger:    logger,
		Global:    assistantCommitter(asst),
		Local:     output.NewCommitter(cfg, logger),
		KeepAlive: opts.keepAlive,
	})

	return &owner{
		domain:     dom,
		notifier:   notifier,
		voice:      sess,
		assistant:  asst,
		controller: controller,
	}, nil
}

// assistantCommitter fails only on save errors; unparsed commands are
// answered by voice and count as handled.
func assistantCommitter(asst *assistant.Assistant) session.Committer {
	return session.CommitFunc(func(ctx context.Context, command string) error {
		result, err := asst.Handle(ctx, command)
		if err != nil && result.Outcome == assistant.OutcomeSaveFailed {
			return err
		}
		return nil
	})
}

func (o *owner) Close() {
	o.voice.Stop()
	o.notifier.Close()
	o.domain.Close()
}

func startFromRequest(req ipc.Request) session.Start {
	if req.Command == ipc.CommandStartLocal {
		return session.Start{Mode: voice.ModeLocal}
	}
	return session.Start{Mode: voice.ModeGlobal, Active: req.Active}
}

// commandListen forwards the start to a running owner or becomes the owner.
func (r Runner) commandListen(ctx context.Context, cfg config.Config, logger *slog.Logger, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardStart(ctx, socketPath, req); handled {
		return code
	}

	sock, err := acquireSocket(ctx, socketPath)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardStart(ctx, socketPath, req); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer sock.Close()

	own, err := buildOwner(ctx, cfg, logger, ownerOptions{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("build session failed", "error", err.Error())
		return 1
	}
	defer own.Close()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		srv := &ipc.Server{Handler: own.controller, Logger: logger}
		serverErrCh <- srv.Serve(serverCtx, sock.Listener)
	}()

	result := own.controller.Run(ctx, startFromRequest(req))
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if strings.TrimSpace(result.LastCommand) != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(result.LastCommand))
	}
	return 0
}

func acquireSocket(ctx context.Context, socketPath string) (*ipc.Owner, error) {
	return ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
}

func (r Runner) forwardStart(ctx context.Context, socketPath string, req ipc.Request) (int, bool) {
	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"mode", result.Mode,
		"commands", result.Commands,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
