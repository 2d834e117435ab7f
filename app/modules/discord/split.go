package discord

import "strings"

// MessageLimit is the most characters Discord accepts in one message.
const MessageLimit = 2000

// minSplitLimit keeps room for a reopened code fence plus some content.
const minSplitLimit = 64

const fence = "```"

// splitter accumulates chunks, tracking the code block open at the cut.
type splitter struct {
	limit   int
	chunks  []string
	cur     strings.Builder
	curLen  int
	opening string
}

func (s *splitter) openingLen() int {
	if s.opening == "" {
		return 0
	}
	return len([]rune(s.opening)) + 1
}

// room is what a chunk holds once a closing fence is accounted for.
func (s *splitter) room() int {
	if s.opening != "" {
		return s.limit - len(fence) - 1
	}
	return s.limit
}

func (s *splitter) write(runes []rune) {
	s.cur.WriteString(string(runes))
	s.cur.WriteByte('\n')
	s.curLen += len(runes) + 1
}

func (s *splitter) flush() {
	body := strings.TrimRight(s.cur.String(), "\n")
	if s.opening != "" {
		body += "\n" + fence
	}
	if strings.TrimSpace(body) != "" {
		s.chunks = append(s.chunks, body)
	}
	s.cur.Reset()
	s.curLen = 0
	if s.opening != "" {
		s.write([]rune(s.opening))
	}
}

func (s *splitter) line(line string) {
	runes := []rune(line)
	for {
		free := s.room() - s.curLen
		if len(runes)+1 <= free {
			s.write(runes)
			break
		}
		if s.curLen > s.openingLen() && len(runes)+1 <= s.room()-s.openingLen() {
			s.flush()
			continue
		}
		// The line cannot fit in any chunk: cut it.
		take := free - 1
		if take <= 0 {
			s.flush()
			continue
		}
		s.write(runes[:take])
		runes = runes[take:]
		s.flush()
	}

	if strings.HasPrefix(strings.TrimSpace(line), fence) {
		if s.opening == "" {
			s.opening = strings.TrimSpace(line)
			if len([]rune(s.opening)) > s.limit/4 {
				s.opening = fence
			}
		} else {
			s.opening = ""
		}
	}
}

// SplitMessage breaks text into chunks of at most limit characters, cutting on
// line boundaries. A code block open at a cut is closed and reopened in the next
// chunk so each message renders on its own. Lines longer than a chunk are cut
// where they overflow.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	limit = max(limit, minSplitLimit)

	s := &splitter{limit: limit}
	for _, line := range strings.Split(text, "\n") {
		s.line(line)
	}
	s.opening = ""
	s.flush()
	return s.chunks
}
