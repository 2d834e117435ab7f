package discord

import (
	"strings"
	"unicode"
)

// Command is a parsed `<prefix> <name> [args...]` message.
type Command struct {
	Name string
	Args []string
}

// ParseCommand reads content as a command invocation. Arguments are separated by
// whitespace; double quotes (straight or curly) group words into one argument.
func ParseCommand(prefix, content string) (Command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return Command{}, false
	}
	rest := content[len(prefix):]
	if rest != "" && !unicode.IsSpace([]rune(rest)[0]) {
		return Command{}, false
	}

	tokens := tokenize(rest)
	if len(tokens) == 0 {
		return Command{}, true
	}
	return Command{Name: strings.ToLower(tokens[0]), Args: tokens[1:]}, true
}

func tokenize(s string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	emit := func() {
		if started {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		started = false
	}

	for _, r := range s {
		switch {
		case r == '"' || r == '“' || r == '”':
			if quoted {
				quoted = false
				emit()
			} else {
				emit()
				quoted = true
				started = true
			}
		case unicode.IsSpace(r) && !quoted:
			emit()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	emit()
	return tokens
}
