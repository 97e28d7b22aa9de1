package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate for both recognition and metering.
	SampleRate = 16000

	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16
)

// Capture streams fixed-size PCM chunks from one selected Pulse source and
// optionally copies every frame to a tap writer.
type Capture struct {
	device Device
	tap    io.Writer

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// CaptureOptions tunes StartCapture.
type CaptureOptions struct {
	// Tap receives a copy of every raw s16le frame, e.g. a LevelMeter.
	Tap io.Writer
	// Chunks disables the chunk channel when false; metering-only captures
	// set it false so nothing has to drain them.
	Chunks    bool
	MediaName string
}

// StartCapture creates and starts a 16kHz mono s16 record stream. The stream
// stops when ctx is done or Stop is called.
func StartCapture(ctx context.Context, selected Device, opts CaptureOptions) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := newCapture(selected, opts)
	capture.client = client

	mediaName := opts.MediaName
	if mediaName == "" {
		mediaName = "dpt voice"
	}
	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName(mediaName),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()

	return capture, nil
}

func newCapture(device Device, opts CaptureOptions) *Capture {
	c := &Capture{
		device: device,
		tap:    opts.Tap,
		stopCh: make(chan struct{}),
	}
	if opts.Chunks {
		c.chunks = make(chan []byte, 128)
	}
	return c
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks returns the PCM stream as fixed-size byte slices. It is nil when
// the capture was started without chunk delivery.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	if c.chunks == nil {
		return nil
	}

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		select {
		case c.chunks <- pending:
		default:
		}
	}
	close(c.chunks)
	return nil
}

// Close implements io.Closer.
func (c *Capture) Close() error {
	return c.Stop()
}

// onPCM receives raw Pulse frames, feeds the tap, and emits chunkSizeBytes
// slices to c.chunks.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as c.stopped so Stop's Wait cannot miss it.
	c.inflight.Add(1)
	defer c.inflight.Done()

	var chunks [][]byte
	if c.chunks != nil {
		c.pending = append(c.pending, buffer...)
		for len(c.pending) >= chunkSizeBytes {
			chunk := make([]byte, chunkSizeBytes)
			copy(chunk, c.pending[:chunkSizeBytes])
			c.pending = c.pending[chunkSizeBytes:]
			chunks = append(chunks, chunk)
		}
	}
	c.mu.Unlock()

	c.bytes.Add(int64(len(buffer)))
	if c.tap != nil {
		_, _ = c.tap.Write(buffer)
	}

	for _, chunk := range chunks {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
