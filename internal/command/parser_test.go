package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

func letters(cmds []rover.Command) string {
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(c.String())
	}
	return b.String()
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"", ""},
		{"F", "F"},
		{"F B L R", "FBLR"},
		{"ffrff", "FFRFF"},
		{"FFRFF", "FFRFF"},
		{"F3 R", "FFFR"},
		{"F 3; R, L", "FFFRL"},
		{"FR2", "FRFR"},
		{"forward backward left right", "FBLR"},
		{"Forward 2, back", "FFB"},
		{"repeat 4 { F R }", "FRFRFRFR"},
		{"repeat 2 { repeat 2 { F } L }", "FFLFFL"},
		{"REPEAT 2 {R}", "RR"},
		{"F # drive north\nR # then turn\n", "FR"},
		{";;F;;", "F"},
		{"F0 R", "R"},
		{"repeat 0 { F } L", "L"},
	}
	for _, tt := range tests {
		cmds, err := ParseCommands("test", tt.src)
		require.NoError(t, err, "src %q", tt.src)
		assert.Equal(t, tt.want, letters(cmds), "src %q", tt.src)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"repeat { F }",
		"repeat 2 { F",
		"F }",
		"3 F",
		"F @",
	} {
		_, err := Parse("test", src)
		assert.ErrorIs(t, err, ErrSyntax, "src %q", src)
	}
}

func TestUnknownWordReportsPosition(t *testing.T) {
	_, err := ParseCommands("drive.rover", "F\nFFXF")
	require.ErrorIs(t, err, ErrUnknownWord)
	assert.Contains(t, err.Error(), "drive.rover:2:3")
}

func TestExpansionIsBounded(t *testing.T) {
	_, err := ParseCommands("test", "repeat 100000 { repeat 100000 { F } }")
	assert.ErrorIs(t, err, ErrTooLong)

	cmds, err := ParseCommands("test", "repeat 1000000000 { }")
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestFormatRoundTrip(t *testing.T) {
	cmds, err := ParseCommands("test", "repeat 30 { F R B L }")
	require.NoError(t, err)

	text := Format(cmds, 40)
	assert.Len(t, strings.Split(text, "\n"), 3)

	again, err := ParseCommands("formatted", text)
	require.NoError(t, err)
	assert.Equal(t, cmds, again)
}
