package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

var (
	laptopMic = Device{ID: "alsa_input.pci-0000_00_1f.3.analog-stereo", Description: "Built-in Audio Analog Stereo", Available: true, Default: true}
	yeti      = Device{ID: "alsa_input.usb-Blue_Yeti", Description: "Yeti Stereo Microphone", Available: true}
	headset   = Device{ID: "bluez_input.headset", Description: "Bose QC Headset", Available: false}
	webcam    = Device{ID: "alsa_input.usb-webcam", Description: "C920 Webcam", Available: true, Muted: true}
)

func TestSelectDeviceFromList(t *testing.T) {
	desk := []Device{laptopMic, yeti, headset, webcam}

	tests := []struct {
		name         string
		devices      []Device
		input        string
		fallback     string
		wantID       string
		wantWarning  string
		wantFallback bool
		wantErr      string
		wantBlocked  bool
	}{
		{name: "server default", devices: desk, input: "default", fallback: "default", wantID: laptopMic.ID},
		{name: "blank input means default", devices: desk, input: "  ", wantID: laptopMic.ID},
		{name: "match by description", devices: desk, input: "YETI stereo", wantID: yeti.ID},
		{name: "match by id", devices: desk, input: "usb-blue", wantID: yeti.ID},
		{
			name: "unplugged input falls back to default", devices: desk,
			input: "bose", wantID: laptopMic.ID, wantWarning: "is unavailable", wantFallback: true,
		},
		{
			name: "muted input uses named fallback", devices: desk,
			input: "c920", fallback: "yeti", wantID: yeti.ID, wantWarning: "is muted", wantFallback: true,
		},
		{
			name: "fallback unplugged", devices: desk,
			input: "c920", fallback: "bose", wantErr: "is not available", wantBlocked: true,
		},
		{
			name: "fallback muted", devices: desk,
			input: "bose", fallback: "webcam", wantErr: "fallback device \"alsa_input.usb-webcam\" is muted", wantBlocked: true,
		},
		{
			name: "fallback missing", devices: desk,
			input: "c920", fallback: "zoom", wantErr: "fallback \"zoom\" not found", wantBlocked: true,
		},
		{
			name: "muted default is its own fallback", devices: []Device{{ID: "mic", Muted: true, Available: true, Default: true}},
			wantErr: "is muted", wantBlocked: true,
		},
		{
			name: "no default to fall back to", devices: []Device{headset},
			input: "headset", wantErr: "no default source", wantBlocked: true,
		},
		{name: "unknown input", devices: desk, input: "zoom", wantErr: "did not match any device"},
		{name: "no default source", devices: []Device{yeti}, wantErr: "default audio source is unavailable"},
		{name: "empty list", wantErr: "no audio input devices"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			selection, err := selectDeviceFromList(tc.devices, tc.input, tc.fallback)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				if tc.wantBlocked {
					require.ErrorIs(t, err, ErrInputBlocked)
				} else {
					require.NotErrorIs(t, err, ErrInputBlocked)
				}
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantID, selection.Device.ID)
			require.Equal(t, tc.wantFallback, selection.Fallback)
			if tc.wantWarning == "" {
				require.Empty(t, selection.Warning)
			} else {
				require.Contains(t, selection.Warning, tc.wantWarning)
			}
		})
	}
}

func TestNormalizeTermTreatsDefaultAsBlank(t *testing.T) {
	for in, want := range map[string]string{
		" Default ": "",
		"DEFAULT":   "",
		"":          "",
		" Yeti ":    "yeti",
	} {
		require.Equal(t, want, normalizeTerm(in), "input %q", in)
	}
	require.False(t, deviceMatches(yeti, ""))
}

func TestPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:"+t.TempDir()+"/no-pulse")

	_, err := ListDevices(context.Background())
	require.ErrorContains(t, err, "connect pulse server")

	_, err = SelectDevice(context.Background(), "default", "")
	require.ErrorContains(t, err, "connect pulse server")
}

func TestSourceStateString(t *testing.T) {
	names := []string{"running", "idle", "suspended"}
	for state, name := range names {
		require.Equal(t, name, sourceStateString(uint32(state)))
	}
	require.Equal(t, "unknown(7)", sourceStateString(7))
}

func TestSourceAvailableFollowsActivePort(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	tests := []struct {
		active    string
		available uint32
		want      bool
	}{
		{active: "analog-input-mic", available: 0, want: true},
		{active: "analog-input-mic", available: 1, want: false},
		{active: "analog-input-mic", available: 2, want: true},
		{active: "headset-mic", available: 1, want: true},
	}
	for _, tc := range tests {
		reply := &pulseproto.GetSourceInfoReply{ActivePortName: tc.active}
		withPorts(t, reply, map[string]uint32{"analog-input-mic": tc.available})
		require.Equal(t, tc.want, sourceAvailable(reply), "active=%s available=%d", tc.active, tc.available)
	}
}

// withPorts fills reply.Ports, whose element type is not exported by the
// proto package.
func withPorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports map[string]uint32) {
	t.Helper()

	field := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	slice := reflect.MakeSlice(field.Type(), 0, len(ports))
	for name, available := range ports {
		port := reflect.New(field.Type().Elem()).Elem()
		port.FieldByName("Name").SetString(name)
		port.FieldByName("Available").SetUint(uint64(available))
		slice = reflect.Append(slice, port)
	}
	field.Set(slice)
}
