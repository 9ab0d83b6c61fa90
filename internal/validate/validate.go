// Package validate holds the pure input rules shared by the native gateway,
// the command interpreter, and the classical wire adaptor. Inputs are
// normalized (Unicode NFC for aliases, lowercasing for channel names,
// whitespace trimming everywhere) and never otherwise altered.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// AliasMaxRunes caps alias length after normalization.
	AliasMaxRunes = 24

	// BodyMaxRunes caps message body length after trimming.
	BodyMaxRunes = 2000
)

// Sentinel errors for the validate package. Rule maps them to their wire
// identifiers.
var (
	ErrEmpty        = errors.New("value must not be empty")
	ErrTooLong      = errors.New("value exceeds the maximum length")
	ErrControlChars = errors.New("value must not contain control characters")
	ErrChannelName  = errors.New("channel name must be '#' followed by 1-48 of a-z, 0-9, '_' or '-'")
)

var channelNameRE = regexp.MustCompile(`^#[a-z0-9_-]{1,48}$`)

// Rule returns the wire identifier for a validation failure, or "" for
// errors this package does not own.
func Rule(err error) string {
	switch {
	case errors.Is(err, ErrEmpty):
		return "EMPTY"
	case errors.Is(err, ErrTooLong):
		return "TOO_LONG"
	case errors.Is(err, ErrControlChars):
		return "CONTROL_CHARS"
	case errors.Is(err, ErrChannelName):
		return "BAD_NAME"
	}
	return ""
}

// Alias normalizes a requested alias to NFC, trims surrounding whitespace,
// and validates it: non-empty, at most AliasMaxRunes runes, no C0 controls
// and no DEL. The normalized alias is returned.
func Alias(raw string) (string, error) {
	s := strings.TrimSpace(norm.NFC.String(raw))
	if s == "" {
		return "", ErrEmpty
	}
	if utf8.RuneCountInString(s) > AliasMaxRunes {
		return "", ErrTooLong
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", ErrControlChars
		}
	}
	return s, nil
}

// ChannelName trims and lowercases a channel name, then checks the closed
// format. The canonical lowercased name is returned.
func ChannelName(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrEmpty
	}
	if !channelNameRE.MatchString(s) {
		return "", ErrChannelName
	}
	return s, nil
}

// MessageBody trims a message body and validates it: non-empty, at most
// BodyMaxRunes runes, no C0 controls other than TAB. The trimmed body is
// returned.
func MessageBody(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmpty
	}
	if utf8.RuneCountInString(s) > BodyMaxRunes {
		return "", ErrTooLong
	}
	for _, r := range s {
		if r < 0x20 && r != '\t' {
			return "", ErrControlChars
		}
	}
	return s, nil
}

// Text trims free-form text such as topics and reasons. It never fails.
func Text(raw string) string {
	return strings.TrimSpace(raw)
}
