package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseNoArgsShowsHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Parsed{Command: CommandHelp, ShowHelp: true}, parsed)
}

func TestParseAcceptsCommands(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)

	tests := []struct {
		args []string
		want Parsed
	}{
		{args: []string{"-h"}, want: Parsed{Command: CommandHelp, ShowHelp: true}},
		{args: []string{"--version"}, want: Parsed{Command: CommandVersion}},
		{args: []string{"help"}, want: Parsed{Command: CommandHelp, ShowHelp: true}},
		{args: []string{"listen"}, want: Parsed{Command: CommandListen}},
		{args: []string{"listen", "--active"}, want: Parsed{Command: CommandListen, Active: true}},
		{args: []string{"--config", "/etc/dpt.jsonc", "take"}, want: Parsed{Command: CommandTake, ConfigPath: "/etc/dpt.jsonc"}},
		{args: []string{"--help", "--config", "c.jsonc"}, want: Parsed{Command: CommandHelp, ShowHelp: true, ConfigPath: "c.jsonc"}},
		{args: []string{"wake"}, want: Parsed{Command: CommandWake}},
		{args: []string{"serve"}, want: Parsed{Command: CommandServe}},
		{
			args: []string{"parse", "모레", "저녁", "7시", "강남역에서", "저녁", "약속"},
			want: Parsed{Command: CommandParse, Text: "모레 저녁 7시 강남역에서 저녁 약속"},
		},
		{
			args: []string{"parse", "다음주", "--at", "2026-10-15T09:30:00+09:00", "월요일"},
			want: Parsed{Command: CommandParse, Text: "다음주 월요일", At: time.Date(2026, 10, 15, 9, 30, 0, 0, seoul)},
		},
		{args: []string{"dict", "list"}, want: Parsed{Command: CommandDict, Dict: DictList, Operands: []string{}}},
		{
			args: []string{"dict", "learn", "데일리", "데일리 스탠드업"},
			want: Parsed{Command: CommandDict, Dict: DictLearn, Operands: []string{"데일리", "데일리 스탠드업"}},
		},
		{
			args: []string{"dict", "learn", "판교", "판교 오피스", "place"},
			want: Parsed{Command: CommandDict, Dict: DictLearn, Operands: []string{"판교", "판교 오피스", "place"}},
		},
		{args: []string{"dict", "forget", "판교"}, want: Parsed{Command: CommandDict, Dict: DictForget, Operands: []string{"판교"}}},
		{args: []string{"dict", "import", "seed.yaml"}, want: Parsed{Command: CommandDict, Dict: DictImport, Operands: []string{"seed.yaml"}}},
	}

	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			got, err := Parse(tc.args)
			require.NoError(t, err)
			require.True(t, tc.want.At.Equal(got.At), "at: want %v got %v", tc.want.At, got.At)
			tc.want.At, got.At = time.Time{}, time.Time{}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := map[string][]string{
		"--config requires a path":                    {"--config"},
		"unknown flag: --verbose":                     {"--verbose"},
		"unknown command: schedule":                   {"schedule"},
		`unexpected arguments after command "status"`: {"status", "--config", "x"},
		`unexpected arguments after command "listen"`: {"listen", "--quiet"},
		`unexpected arguments after command "stop"`:   {"stop", "now"},
		"parse requires text":                         {"parse", "--at", "2026-10-15T09:00:00Z"},
		"--at requires an RFC 3339 time":              {"parse", "회의", "--at"},
		"invalid --at":                                {"parse", "--at", "내일", "회의"},
		"dict requires one of":                        {"dict"},
		"unknown dict action: rename":                 {"dict", "rename", "a", "b"},
		"dict list takes no arguments":                {"dict", "list", "all"},
		"dict learn requires":                         {"dict", "learn", "판교"},
		"dict forget requires <keyword>":              {"dict", "forget"},
		"dict import requires <file.yaml>":            {"dict", "import", "a.yaml", "b.yaml"},
	}

	for want, args := range tests {
		t.Run(want, func(t *testing.T) {
			_, err := Parse(args)
			require.ErrorContains(t, err, want)
		})
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	text := HelpText("dpt-dev")
	require.Contains(t, text, "dpt-dev [--config PATH] <command>")
	for cmd := range validCommands {
		require.Contains(t, text, "  "+string(cmd), "help is missing %s", cmd)
	}
	for _, action := range []DictAction{DictList, DictLearn, DictForget, DictImport} {
		require.Contains(t, text, "dict "+string(action))
	}
}
