package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type urgency byte

const (
	urgencyNormal   urgency = 1
	urgencyCritical urgency = 2
)

// notification is one org.freedesktop.Notifications.Notify call.
type notification struct {
	appName   string
	replaceID uint32
	summary   string
	urgency   urgency
	timeoutMS int
}

func (n notification) icon() string {
	if n.urgency == urgencyCritical {
		return "dialog-error"
	}
	return "audio-input-microphone"
}

// hints encodes the a{sv} argument in busctl's positional syntax. Only
// critical notifications carry a hint so normal ones use server defaults.
func (n notification) hints() []string {
	if n.urgency != urgencyCritical {
		return []string{"0"}
	}
	return []string{"1", "urgency", "y", strconv.Itoa(int(n.urgency))}
}

// desktopBus talks to the session notification daemon through busctl.
type desktopBus struct {
	call func(ctx context.Context, method string, args ...string) (string, error)
}

func newDesktopBus() desktopBus {
	return desktopBus{call: busctl}
}

// notify shows n and returns the id the daemon assigned; passing it back as
// replaceID updates the same bubble.
func (b desktopBus) notify(ctx context.Context, n notification) (uint32, error) {
	args := []string{
		"susssasa{sv}i",
		n.appName,
		strconv.FormatUint(uint64(n.replaceID), 10),
		n.icon(),
		n.summary,
		"",
		"0",
	}
	args = append(args, n.hints()...)
	args = append(args, strconv.Itoa(n.timeoutMS))

	reply, err := b.call(ctx, "Notify", args...)
	if err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	kind, value, ok := strings.Cut(reply, " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("notify: unexpected reply %q", reply)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("notify: bad id %q: %w", value, err)
	}
	return uint32(id), nil
}

func (b desktopBus) dismiss(ctx context.Context, id uint32) error {
	if _, err := b.call(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("dismiss %d: %w", id, err)
	}
	return nil
}

func busctl(ctx context.Context, method string, args ...string) (string, error) {
	argv := append([]string{
		"--user", "call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		method,
	}, args...)

	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil && reply != "" {
		return "", fmt.Errorf("busctl %s: %w: %s", method, err, reply)
	}
	if err != nil {
		return "", fmt.Errorf("busctl %s: %w", method, err)
	}
	return reply, nil
}
