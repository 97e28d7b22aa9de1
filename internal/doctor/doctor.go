// Package doctor runs runtime readiness diagnostics for config, tools,
// audio, the speech service, the dictionary store and a running daemon.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/config"
	"github.com/rbright/dpt/internal/dictionary"
	"github.com/rbright/dpt/internal/health"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result. Optional checks report WARN instead
// of failing the run.
type Check struct {
	Name     string
	Pass     bool
	Optional bool
	Message  string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all required checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass && !check.Optional {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		switch {
		case !check.Pass && check.Optional:
			status = "WARN"
		case !check.Pass:
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMessage = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	if cfg.Source != "" {
		configMessage += fmt.Sprintf(" (from %s)", cfg.Source)
	}
	if len(cfg.Overrides) > 0 {
		configMessage += "; overridden by " + strings.Join(cfg.Overrides, ", ")
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "runtime dir available for the control socket", "XDG_RUNTIME_DIR is empty"))

	checks = append(checks, checkEnv(cfg.Config.STT.APIKeyEnv, func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "speech API key is set", cfg.Config.STT.APIKeyEnv+" is empty"))

	checks = append(checks, checkCommand(cfg.Config.Clipboard, "clipboard_cmd"))
	if cfg.Config.Paste.Enable {
		checks = append(checks, checkCommand(cfg.Config.PasteCmd, "paste_cmd"))
	}
	if cfg.Config.TTS.Backend == "command" {
		checks = append(checks, checkCommand(cfg.Config.TTS.Command, "tts.command"))
	}
	if cfg.Config.Indicator.Enable && cfg.Config.Indicator.Backend == "desktop" {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}
	if cfg.Config.Indicator.SoundEnable {
		check := checkBinary("pw-play", "sound cue files")
		check.Optional = true
		checks = append(checks, check)
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkEndpoint(ctx, "stt.endpoint", cfg.Config.STT.URL))
	checks = append(checks, checkDictionaryStore(ctx, cfg.Config.Dictionary.Store))
	checks = append(checks, checkDaemon(ctx, cfg.Config.Server.GRPCAddr))

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that cmd names a runnable program.
func checkCommand(cmd config.CommandConfig, name string) Check {
	if cmd.Empty() {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(cmd.Argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkEndpoint opens a TCP connection to a ws/wss/http/https endpoint.
func checkEndpoint(ctx context.Context, name, raw string) Check {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("invalid endpoint %q", raw)}
	}

	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "ws" || u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	dialCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("connect %s: %v", host, err)}
	}
	_ = conn.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s", host)}
}

// checkDictionaryStore opens the configured store and lists its entries.
func checkDictionaryStore(ctx context.Context, dsn string) Check {
	store, err := dictionary.OpenStore(ctx, dsn)
	if err != nil {
		return Check{Name: "dictionary.store", Pass: false, Message: err.Error()}
	}
	defer store.Close()

	entries, err := store.List(ctx)
	if err != nil {
		return Check{Name: "dictionary.store", Pass: false, Message: err.Error()}
	}
	return Check{Name: "dictionary.store", Pass: true, Message: fmt.Sprintf("%d entries in %s", len(entries), describeDSN(dsn))}
}

// checkDaemon reports the voice health status of a running dpt serve.
func checkDaemon(ctx context.Context, addr string) Check {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Check{Name: "daemon", Pass: true, Optional: true, Message: "server.grpc_addr is empty; skipped"}
	}
	status, err := health.Probe(ctx, addr, health.ServiceName, probeTimeout)
	if err != nil {
		return Check{Name: "daemon", Pass: false, Optional: true, Message: fmt.Sprintf("not reachable at %s (start it with `dpt serve`)", addr)}
	}
	return Check{Name: "daemon", Pass: true, Optional: true, Message: fmt.Sprintf("%s is %s at %s", health.ServiceName, status, addr)}
}

// describeDSN hides credentials in postgres URLs.
func describeDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "memory"
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
