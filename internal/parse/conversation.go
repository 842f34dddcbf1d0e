package parse

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// UnknownSender is used when no line of the text looks like "Sender: message".
const UnknownSender = "unknown"

const (
	maxSenderLineLen = 50
	maxSenderLen     = 30
)

// ChatMessage is one conversation turn recovered from screen text.
type ChatMessage struct {
	Sender    string
	Content   string
	Timestamp int64 // epoch milliseconds
}

// bare clock lines such as "9:05" or "12:30:45"
var timestampLine = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)

// Parse splits recognized text into chat messages in top-to-bottom order.
//
// A short line with an early colon starts a new message from the text before
// the colon; other lines continue the current message. Bare clock lines are
// dropped. Lines seen before the first sender are discarded once a sender
// appears. If nothing looks like a sender, the whole trimmed text becomes one
// message from UnknownSender.
//
// Content that happens to contain an early colon (a URL, "ratio 3:2") is
// taken as a new sender. There is no way to tell the two apart from text
// alone.
func Parse(text string, at time.Time) []ChatMessage {
	ts := at.UnixMilli()

	var messages []ChatMessage
	var sender string
	var inMessage bool
	var buf strings.Builder

	flush := func() {
		if !inMessage {
			return
		}
		content := strings.TrimSpace(buf.String())
		if content == "" {
			return
		}
		messages = append(messages, ChatMessage{Sender: sender, Content: content, Timestamp: ts})
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || timestampLine.MatchString(line) {
			continue
		}

		if prefix, rest, ok := senderLine(line); ok {
			flush()
			sender, inMessage = prefix, true
			buf.Reset()
			buf.WriteString(rest)
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
	}
	flush()

	if len(messages) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			messages = append(messages, ChatMessage{Sender: UnknownSender, Content: trimmed, Timestamp: ts})
		}
	}
	return messages
}

// senderLine reports whether line opens a new message and splits it at the
// first colon. Lengths are counted in runes.
func senderLine(line string) (sender, rest string, ok bool) {
	if utf8.RuneCountInString(line) >= maxSenderLineLen {
		return "", "", false
	}
	prefix, remainder, found := strings.Cut(line, ":")
	if !found || utf8.RuneCountInString(prefix) >= maxSenderLen {
		return "", "", false
	}
	sender = strings.TrimSpace(prefix)
	rest = strings.TrimSpace(remainder)
	if rest == "" {
		return "", "", false
	}
	return sender, rest, true
}
