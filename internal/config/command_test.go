package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr string
	}{
		{name: "blank", raw: "   "},
		{name: "commented out", raw: "# wl-copy"},
		{name: "plain", raw: "espeak-ng -v ko", want: []string{"espeak-ng", "-v", "ko"}},
		{name: "double quoted", raw: `notify-send "일정 추가됨"`, want: []string{"notify-send", "일정 추가됨"}},
		{name: "single quoted keeps backslash", raw: `printf '%s\n'`, want: []string{"printf", `%s\n`}},
		{name: "escaped quote inside double", raw: `echo "say \"hi\""`, want: []string{"echo", `say "hi"`}},
		{name: "escaped space", raw: `play cue\ wake.wav`, want: []string{"play", "cue wake.wav"}},
		{name: "empty quoted argument", raw: `tool --label ""`, want: []string{"tool", "--label", ""}},
		{name: "adjacent segments join", raw: `tool --x='a b'c`, want: []string{"tool", "--x=a bc"}},
		{name: "open quote", raw: `tool "oops`, wantErr: "unterminated quote"},
		{name: "trailing backslash", raw: `tool oops\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := NewCommand(tc.raw)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, cmd.Argv)
			require.Equal(t, tc.raw, cmd.Raw)
			require.Equal(t, len(tc.want) == 0, cmd.Empty())
		})
	}
}

func TestNewCommandExpandsHomeInProgram(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cmd, err := NewCommand("~/bin/speak ~/cue.wav")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(home, "bin/speak"), "~/cue.wav"}, cmd.Argv)
	require.Equal(t, "~/bin/speak ~/cue.wav", cmd.String())
}

func TestMustCommandPanics(t *testing.T) {
	require.Panics(t, func() { _ = MustCommand(`tool "open`) })
	require.NotPanics(t, func() { _ = MustCommand(os.DevNull) })
}
