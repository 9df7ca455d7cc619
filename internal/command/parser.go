// Package command parses rover command scripts.
//
// A script is a sequence of words separated by whitespace, ';' or ','.
// Words are single commands (F, B, L, R or forward, backward, left, right),
// compact runs (FFRFF), optionally followed by a repeat count (F 3, FR2).
// Blocks repeat with `repeat N { ... }` and '#' starts a comment.
package command

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// MaxCommands bounds the expansion of a script.
const MaxCommands = 1 << 20

type Script struct {
	Pos   lexer.Position
	Steps []*Step `parser:"Sep* ( @@ Sep* )*"`
}

type Step struct {
	Pos    lexer.Position
	Repeat *Repeat `parser:"  @@"`
	Action *Action `parser:"| @@"`
}

type Repeat struct {
	Times int     `parser:"'repeat' @Int"`
	Body  *Script `parser:"'{' @@ '}'"`
}

type Action struct {
	Pos   lexer.Position
	Word  string `parser:"@Ident"`
	Count *int   `parser:"@Int?"`
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[A-Za-z]+`},
	{Name: "Sep", Pattern: `[;,]`},
	{Name: "Punct", Pattern: `[{}]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[Script](
	participle.Lexer(scriptLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.CaseInsensitive("Ident"),
)

// Parse parses a script. name is used in error positions.
func Parse(name, src string) (*Script, error) {
	s, err := parser.ParseString(name, src)
	if err != nil {
		return nil, errors.Wrapf(ErrSyntax, "%v", err)
	}
	return s, nil
}

// ParseCommands parses src and expands it.
func ParseCommands(name, src string) ([]rover.Command, error) {
	s, err := Parse(name, src)
	if err != nil {
		return nil, err
	}
	return s.Commands()
}

// Commands expands the script into a flat command list.
func (s *Script) Commands() ([]rover.Command, error) {
	var out []rover.Command
	if err := s.expand(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Script) expand(out *[]rover.Command) error {
	for _, step := range s.Steps {
		var (
			unit  []rover.Command
			times = 1
		)
		switch {
		case step.Repeat != nil:
			if err := step.Repeat.Body.expand(&unit); err != nil {
				return err
			}
			times = step.Repeat.Times
		case step.Action != nil:
			cmds, err := step.Action.commands()
			if err != nil {
				return err
			}
			unit = cmds
			if step.Action.Count != nil {
				times = *step.Action.Count
			}
		}
		if len(unit) == 0 || times == 0 {
			continue
		}
		if times > (MaxCommands-len(*out))/len(unit) {
			return errors.Wrapf(ErrTooLong, "%s", step.Pos)
		}
		for i := 0; i < times; i++ {
			*out = append(*out, unit...)
		}
	}
	return nil
}

// commands resolves a word: a long name first, otherwise a run of letters.
func (a *Action) commands() ([]rover.Command, error) {
	switch strings.ToLower(a.Word) {
	case "forward", "backward", "back", "left", "right":
		c, err := rover.ParseCommand(a.Word)
		if err != nil {
			return nil, err
		}
		return []rover.Command{c}, nil
	}

	out := make([]rover.Command, 0, len(a.Word))
	for i, r := range a.Word {
		c, err := rover.ParseCommand(string(r))
		if err != nil {
			pos := a.Pos
			pos.Offset += i
			pos.Column += i
			return nil, errors.Wrapf(ErrUnknownWord, "%s: %q in %q", pos, r, a.Word)
		}
		out = append(out, c)
	}
	return out, nil
}

// Format renders commands as a compact script, one run of up to width
// letters per line.
func Format(cmds []rover.Command, width int) string {
	if width <= 0 {
		width = 40
	}
	var b strings.Builder
	for i, c := range cmds {
		if i > 0 && i%width == 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.String())
	}
	return b.String()
}
