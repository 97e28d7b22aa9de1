package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/cli"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/doctor"
	"github.com/rbright/dpt/internal/ipc"
	"github.com/rbright/dpt/internal/logging"
	"github.com/rbright/dpt/internal/tui"
	"github.com/rbright/dpt/internal/version"
)

const binaryName = "dpt"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(string(parsed.Command))
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: file logging disabled: %v\n", err)
		logRuntime = logging.Discard()
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if cfgLoaded.Exists || parsed.Command == cli.CommandDoctor {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"config", cfgLoaded.Path,
		"config_source", string(cfgLoaded.Source),
		"overrides", cfgLoaded.Overrides,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandStop})
	case cli.CommandWake:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandStartGlobal, Active: true})
	case cli.CommandTake:
		return r.commandTake(ctx)
	case cli.CommandListen:
		return r.commandListen(ctx, cfg, logger, ipc.Request{Command: ipc.CommandStartGlobal, Active: parsed.Active})
	case cli.CommandDictate:
		return r.commandListen(ctx, cfg, logger, ipc.Request{Command: ipc.CommandStartLocal})
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, logger)
	case cli.CommandMonitor:
		return r.commandMonitor(ctx)
	case cli.CommandParse:
		return r.commandParse(ctx, cfg, logger, parsed)
	case cli.CommandDict:
		return r.commandDict(ctx, cfg, logger, parsed)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// commandStatus prints the owner's state, or "stopped" when nothing owns
// the socket.
func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CommandStatus})
	if !handled {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, describeStatus(resp))
	return 0
}

func describeStatus(resp ipc.Response) string {
	state := resp.State
	if state == "" {
		state = "stopped"
	}
	parts := []string{state}
	if resp.Mode != "" && resp.Listening {
		parts = append(parts, "mode="+resp.Mode)
	}
	if resp.Active {
		parts = append(parts, "active")
	}
	if resp.Speaking {
		parts = append(parts, "speaking")
	}
	if resp.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%q", resp.Error))
	}
	return strings.Join(parts, " ")
}

func (r Runner) commandTake(ctx context.Context) int {
	resp, ok := r.forward(ctx, ipc.Request{Command: ipc.CommandTake})
	if !ok {
		return 1
	}
	fmt.Fprintln(r.Stdout, resp.Command)
	return 0
}

func (r Runner) commandMonitor(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	client := tui.NewSocketClient(socketPath)
	defer client.Close()
	if err := tui.Run(ctx, client); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	resp, ok := r.forward(ctx, req)
	if !ok {
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) forward(ctx context.Context, req ipc.Request) (ipc.Response, bool) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, false
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active %s session\n", binaryName)
		return ipc.Response{}, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return ipc.Response{}, false
	}
	return resp, true
}

// tryForward reports handled=false when no owner is listening on socketPath.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsUnavailable(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}
