package audio

import (
	"math"
	"math/cmplx"
	"sync"
)

const (
	fftSize            = 256
	minDecibels        = -100.0
	maxDecibels        = -30.0
	smoothingTimeConst = 0.8
)

// LevelMeter turns the most recent fftSize samples of s16le PCM into a 0-100
// loudness value: the mean of byte-scaled spectrum bins, where a mean of 128
// maps to 100. It is an io.Writer so a Capture can tap into it directly.
//
// One meter lives for the whole voice session and is Reset between runs.
type LevelMeter struct {
	mu       sync.Mutex
	ring     [fftSize]float64
	next     int
	filled   int
	odd      []byte
	smoothed [fftSize / 2]float64
	window   [fftSize]float64
}

func NewLevelMeter() *LevelMeter {
	m := &LevelMeter{}
	// Blackman window, alpha 0.16.
	for i := range m.window {
		x := float64(i) / fftSize
		m.window[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	}
	return m
}

// Write consumes little-endian s16 mono PCM.
func (m *LevelMeter) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(p)
	if len(m.odd) > 0 {
		p = append(append([]byte(nil), m.odd...), p...)
		m.odd = nil
	}
	for len(p) >= 2 {
		sample := int16(uint16(p[0]) | uint16(p[1])<<8)
		m.ring[m.next] = float64(sample) / 32768
		m.next = (m.next + 1) % fftSize
		if m.filled < fftSize {
			m.filled++
		}
		p = p[2:]
	}
	if len(p) == 1 {
		m.odd = []byte{p[0]}
	}
	return n, nil
}

// Level returns the current 0-100 loudness estimate.
func (m *LevelMeter) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.filled == 0 {
		return 0
	}

	frame := make([]complex128, fftSize)
	for i := 0; i < fftSize; i++ {
		sample := m.ring[(m.next+i)%fftSize]
		frame[i] = complex(sample*m.window[i], 0)
	}
	fft(frame)

	sum := 0.0
	for k := range m.smoothed {
		magnitude := cmplx.Abs(frame[k]) / fftSize
		m.smoothed[k] = smoothingTimeConst*m.smoothed[k] + (1-smoothingTimeConst)*magnitude
		sum += byteScale(m.smoothed[k])
	}
	average := sum / float64(len(m.smoothed))
	return int(math.Min(100, math.Round(average/128*100)))
}

// Reset forgets buffered audio and smoothing state.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring = [fftSize]float64{}
	m.smoothed = [fftSize / 2]float64{}
	m.next = 0
	m.filled = 0
	m.odd = nil
}

// byteScale maps a linear magnitude onto 0-255 across the decibel range.
func byteScale(magnitude float64) float64 {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	scaled := math.Floor(255 / (maxDecibels - minDecibels) * (db - minDecibels))
	return math.Max(0, math.Min(255, scaled))
}

// fft is an in-place iterative radix-2 transform; len(a) must be a power of two.
func fft(a []complex128) {
	n := len(a)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < size/2; k++ {
				even := a[start+k]
				odd := a[start+k+size/2] * w
				a[start+k] = even + odd
				a[start+k+size/2] = even - odd
				w *= step
			}
		}
	}
}
