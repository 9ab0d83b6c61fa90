package wire

import "strings"

// Numeric replies used by the adaptor, by their classical mnemonics.
const (
	rplWelcome        = "001"
	rplList           = "322"
	rplListEnd        = "323"
	rplNamReply       = "353"
	rplEndOfNames     = "366"
	errNoSuchNick     = "401"
	errNoTextToSend   = "412"
	errErroneousNick  = "432"
	errNicknameInUse  = "433"
	errNeedMoreParams = "461"
)

// parseLine splits one classical line into verb and parameters. A parameter
// introduced by ':' swallows the rest of the line, spaces included. A
// leading source prefix is tolerated and discarded; clients are not supposed
// to send one. The verb comes back upper-cased.
func parseLine(raw string) (string, []string) {
	line := strings.TrimLeft(strings.TrimRight(raw, "\r\n"), " ")
	if line == "" {
		return "", nil
	}
	if line[0] == ':' {
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			return "", nil
		}
		line = strings.TrimLeft(line[i+1:], " ")
	}

	verb := line
	var params []string
	if i := strings.IndexByte(line, ' '); i >= 0 {
		verb, line = line[:i], strings.TrimLeft(line[i+1:], " ")
		for line != "" {
			if line[0] == ':' {
				params = append(params, line[1:])
				break
			}
			i = strings.IndexByte(line, ' ')
			if i < 0 {
				params = append(params, line)
				break
			}
			params = append(params, line[:i])
			line = strings.TrimLeft(line[i+1:], " ")
		}
	}
	return strings.ToUpper(verb), params
}

// formatLine renders one CR/LF-terminated line. The final parameter is
// always sent in trailing position so it may carry spaces or be empty;
// every other parameter must be a single token.
func formatLine(source, verb string, params ...string) []byte {
	var b strings.Builder
	if source != "" {
		b.WriteByte(':')
		b.WriteString(source)
		b.WriteByte(' ')
	}
	b.WriteString(verb)
	for i, p := range params {
		b.WriteByte(' ')
		if i == len(params)-1 {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
