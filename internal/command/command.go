// Package command tokenizes slash-command input lines.
package command

import (
	"strings"
	"unicode"
)

// Command is one parsed slash invocation. Args are the whitespace-split
// tokens after the command name; RawArgs keeps the remainder's original
// internal spacing for commands that take free text.
type Command struct {
	Name    string
	Args    []string
	RawArgs string
}

// Parse splits a raw input line into a command invocation. It returns nil
// when the trimmed line does not start with '/'.
func Parse(raw string) *Command {
	line := strings.TrimSpace(raw)
	if !strings.HasPrefix(line, "/") {
		return nil
	}

	rest := line[1:]
	name := rest
	rawArgs := ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name = rest[:i]
		rawArgs = strings.TrimLeftFunc(rest[i:], unicode.IsSpace)
	}

	return &Command{
		Name:    strings.ToLower(name),
		Args:    strings.Fields(rawArgs),
		RawArgs: rawArgs,
	}
}

// Arg returns the i-th argument or "" when absent.
func (c *Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ArgsFrom returns the raw remainder starting at the i-th argument, with the
// original spacing between later arguments preserved.
func (c *Command) ArgsFrom(i int) string {
	if i <= 0 {
		return c.RawArgs
	}
	rest := c.RawArgs
	for ; i > 0 && rest != ""; i-- {
		j := strings.IndexFunc(rest, unicode.IsSpace)
		if j < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[j:], unicode.IsSpace)
	}
	return rest
}
