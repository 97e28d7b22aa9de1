package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/realtime"
)

type fakeSTT struct {
	events chan realtime.Event

	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
	once    sync.Once
}

func newFakeSTT() *fakeSTT {
	return &fakeSTT{events: make(chan realtime.Event, 16)}
}

func (f *fakeSTT) Events() <-chan realtime.Event { return f.events }

func (f *fakeSTT) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeSTT) Err() error { return nil }

// Close mirrors the real stream: the event channel closes once the
// connection goes away.
func (f *fakeSTT) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.events)
	})
	return nil
}

func (f *fakeSTT) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSTT) sentChunks() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

type fakeCapture struct {
	chunks chan []byte
	once   sync.Once

	mu      sync.Mutex
	stopped bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{chunks: make(chan []byte, 16)}
}

func (f *fakeCapture) Chunks() <-chan []byte { return f.chunks }

func (f *fakeCapture) Stop() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		close(f.chunks)
	})
	return nil
}

func (f *fakeCapture) Close() error { return f.Stop() }

func (f *fakeCapture) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func selectFixed(device audio.Device, warning string) selectFunc {
	return func(context.Context, string, string) (audio.Selection, error) {
		return audio.Selection{Device: device, Warning: warning}, nil
	}
}

func selectFailing(err error) selectFunc {
	return func(context.Context, string, string) (audio.Selection, error) {
		return audio.Selection{}, err
	}
}

var errBoom = errors.New("boom")
