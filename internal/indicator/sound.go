package indicator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rbright/dpt/internal/audio"
	"github.com/rbright/dpt/internal/config"
)

type cueKind int

const (
	cueListen cueKind = iota + 1
	cueWake
	cueCommand
	cueStop
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueRamp       = 5 * time.Millisecond
)

// tone is one sine segment of a cue.
type tone struct {
	hz     float64
	length time.Duration
	gain   float64
}

type cueSpec struct {
	tones []tone
	// file returns the configured override, if any.
	file func(config.IndicatorConfig) string
}

var cueSpecs = map[cueKind]cueSpec{
	cueListen: {tones: []tone{{660, 60 * time.Millisecond, 0.16}, {880, 60 * time.Millisecond, 0.16}}},
	cueWake: {
		tones: []tone{{880, 70 * time.Millisecond, 0.18}, {1175, 70 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundWakeFile },
	},
	cueCommand: {
		tones: []tone{{740, 65 * time.Millisecond, 0.18}, {988, 90 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundCommandFile },
	},
	cueStop: {
		tones: []tone{{620, 120 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStopFile },
	},
	cueError: {
		tones: []tone{{480, 75 * time.Millisecond, 0.18}, {360, 90 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundErrorFile },
	},
}

// cuePCM renders every cue once on first use.
var cuePCM = sync.OnceValue(func() map[cueKind][]int16 {
	rendered := make(map[cueKind][]int16, len(cueSpecs))
	for kind, spec := range cueSpecs {
		rendered[kind] = render(spec.tones)
	}
	return rendered
})

// cueFilePlayers are tried in order for configured sound files.
var cueFilePlayers = [][]string{
	{"pw-play", "--media-role", "Notification"},
	{"paplay"},
}

// emitCue plays the configured file for kind and falls back to the
// built-in tone when there is none or it cannot be played.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := cuePath(kind, cfg); path != "" {
		if err := playFile(ctx, path); err == nil {
			return nil
		}
	}
	return audio.Play(ctx, cuePCM()[kind], cueSampleRate, "dpt indicator cue")
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	spec, ok := cueSpecs[kind]
	if !ok || spec.file == nil {
		return ""
	}
	return config.ExpandUser(spec.file(cfg))
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	for _, player := range cueFilePlayers {
		bin, err := exec.LookPath(player[0])
		if err != nil {
			continue
		}
		args := append(append([]string(nil), player[1:]...), path)
		if err := exec.CommandContext(ctx, bin, args...).Run(); err != nil {
			return fmt.Errorf("%s %s: %w", player[0], path, err)
		}
		return nil
	}
	return errors.New("no sound file player found")
}

// render concatenates tones with short silences between them.
func render(tones []tone) []int16 {
	gap := sampleCount(cueGap)
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, t.samples()...)
	}
	return pcm
}

// samples renders the tone with raised-cosine fades so it does not click.
func (t tone) samples() []int16 {
	n := sampleCount(t.length)
	if n == 0 || t.hz <= 0 || t.gain <= 0 {
		return nil
	}
	ramp := min(sampleCount(cueRamp), n/2)

	out := make([]int16, n)
	for i := range out {
		env := 1.0
		if edge := min(i, n-1-i); edge < ramp {
			env = 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(ramp))
		}
		phase := 2 * math.Pi * t.hz * float64(i) / cueSampleRate
		out[i] = int16(math.Round(math.Sin(phase) * t.gain * env * math.MaxInt16))
	}
	return out
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
