package voice

import (
	"context"
	"sync"
)

// commandSlot holds at most one pending command. A newer command
// overwrites an unread one; reading clears it.
type commandSlot struct {
	mu    sync.Mutex
	value string
	full  bool
	ready chan struct{}
}

func newCommandSlot() *commandSlot {
	return &commandSlot{ready: make(chan struct{}, 1)}
}

func (c *commandSlot) put(command string) {
	c.mu.Lock()
	c.value = command
	c.full = true
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *commandSlot) take() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.full {
		return "", false
	}
	value := c.value
	c.value = ""
	c.full = false
	return value, true
}

func (c *commandSlot) peek() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.full
}

// wait blocks until a command can be taken or ctx ends.
func (c *commandSlot) wait(ctx context.Context) (string, error) {
	for {
		if value, ok := c.take(); ok {
			return value, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.ready:
		}
	}
}
