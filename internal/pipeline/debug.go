package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/dpt/internal/audio"
)

// debugRecorder holds the artifacts of one recognition stream in its own
// directory: $XDG_STATE_HOME/dpt/debug/<time>-<id>/{stt.jsonl,audio.wav}.
type debugRecorder struct {
	dir    string
	events *os.File
	audio  *wavWriter
}

func newDebugRecorder(now time.Time, streamDump, audioDump bool) (*debugRecorder, error) {
	root, err := debugRoot()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, now.Format("20060102-150405")+"-"+uuid.NewString()[:8])
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	rec := &debugRecorder{dir: dir}
	if streamDump {
		if rec.events, err = createArtifact(dir, "stt.jsonl"); err != nil {
			return nil, err
		}
	}
	if audioDump {
		f, err := createArtifact(dir, "audio.wav")
		if err == nil {
			rec.audio, err = newWAVWriter(f, audio.SampleRate, 1)
		}
		if err != nil {
			_ = rec.Close()
			return nil, err
		}
	}
	return rec, nil
}

// eventSink is nil when the stream dump is off.
func (r *debugRecorder) eventSink() io.Writer {
	if r == nil || r.events == nil {
		return nil
	}
	return r.events
}

// audioTap is nil when the audio dump is off.
func (r *debugRecorder) audioTap() io.Writer {
	if r == nil || r.audio == nil {
		return nil
	}
	return r.audio
}

func (r *debugRecorder) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.events != nil {
		errs = append(errs, r.events.Close())
	}
	if r.audio != nil {
		errs = append(errs, r.audio.Close())
	}
	return errors.Join(errs...)
}

func createArtifact(dir, name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return f, nil
}

func debugRoot() (string, error) {
	state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if state == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for state: %w", err)
		}
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "dpt", "debug"), nil
}

const wavHeaderSize = 44

// wavWriter streams s16le PCM to a WAV file. The RIFF and data sizes are
// written as zero and patched on Close, so a crashed process still leaves
// a file most players accept.
type wavWriter struct {
	mu   sync.Mutex
	f    *os.File
	size uint32
}

func newWAVWriter(f *os.File, sampleRate, channels int) (*wavWriter, error) {
	if _, err := f.Write(wavHeader(0, sampleRate, channels)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &wavWriter{f: f}, nil
}

func (w *wavWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, os.ErrClosed
	}
	n, err := w.f.Write(p)
	w.size += uint32(n)
	return n, err
}

func (w *wavWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil

	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], 36+w.size)
	_, err1 := f.WriteAt(sizes[:], 4)
	binary.LittleEndian.PutUint32(sizes[:], w.size)
	_, err2 := f.WriteAt(sizes[:], 40)
	return errors.Join(err1, err2, f.Close())
}

func wavHeader(dataLen uint32, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bytesPerSample = 2
	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+dataLen)
	copy(h[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(sampleRate*channels*bytesPerSample))
	binary.LittleEndian.PutUint16(h[32:], uint16(channels*bytesPerSample))
	binary.LittleEndian.PutUint16(h[34:], 8*bytesPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], dataLen)
	return h
}
