package document

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Zuo-Peng/chatcap/internal/parse"
)

const (
	chatTitle  = "=== 聊天记录 ==="
	textTitle  = "=== 文本内容 ==="
	timeLabel  = "提取时间: "
	countLabel = "消息数量: "

	// TimeLayout is how extraction time is written in document headers.
	TimeLayout = "2006-01-02 15:04:05"
)

// Document is one conversation extracted from a capture.
type Document struct {
	ExtractedAt time.Time
	Messages    []parse.ChatMessage
	// Raw is the recognized text; it is written verbatim when Messages is empty.
	Raw string
}

func (d Document) Count() int { return len(d.Messages) }

// Format renders the persisted body. The output depends only on d.
func Format(d Document) string {
	var b strings.Builder
	ts := d.ExtractedAt.Format(TimeLayout)

	if len(d.Messages) == 0 {
		b.WriteString(textTitle + "\n")
		b.WriteString(timeLabel + ts + "\n")
		b.WriteString("\n")
		b.WriteString(d.Raw)
		return b.String()
	}

	b.WriteString(chatTitle + "\n")
	b.WriteString(timeLabel + ts + "\n")
	fmt.Fprintf(&b, "%s%d\n", countLabel, len(d.Messages))
	b.WriteString("\n")
	for i, m := range d.Messages {
		fmt.Fprintf(&b, "【%d】 %s:\n", i+1, m.Sender)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Decode reads a body written by Format back into a Document. Times are read
// in loc. Plain-text bodies come back with Raw set and no messages.
func Decode(body string, loc *time.Location) (Document, error) {
	var d Document
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return d, fmt.Errorf("decode document: empty body")
	}
	title := sc.Text()
	if title != chatTitle && title != textTitle {
		return d, fmt.Errorf("decode document: unknown title %q", title)
	}
	if !sc.Scan() || !strings.HasPrefix(sc.Text(), timeLabel) {
		return d, fmt.Errorf("decode document: missing extraction time")
	}
	at, err := time.ParseInLocation(TimeLayout, strings.TrimPrefix(sc.Text(), timeLabel), loc)
	if err != nil {
		return d, fmt.Errorf("decode document: %w", err)
	}
	d.ExtractedAt = at

	if title == textTitle {
		// header is title, time, blank line; the rest is verbatim
		_, rest, _ := strings.Cut(body, "\n")
		_, rest, _ = strings.Cut(rest, "\n")
		_, rest, _ = strings.Cut(rest, "\n")
		d.Raw = rest
		return d, nil
	}

	if !sc.Scan() || !strings.HasPrefix(sc.Text(), countLabel) {
		return d, fmt.Errorf("decode document: missing message count")
	}
	want, err := strconv.Atoi(strings.TrimPrefix(sc.Text(), countLabel))
	if err != nil {
		return d, fmt.Errorf("decode document: bad message count: %w", err)
	}

	ts := at.UnixMilli()
	var cur *parse.ChatMessage
	var lines []string
	flush := func() {
		if cur == nil {
			return
		}
		cur.Content = strings.TrimSpace(strings.Join(lines, "\n"))
		d.Messages = append(d.Messages, *cur)
		cur, lines = nil, nil
	}
	for sc.Scan() {
		line := sc.Text()
		if sender, ok := blockHeader(line, len(d.Messages)+1); ok {
			flush()
			cur = &parse.ChatMessage{Sender: sender, Timestamp: ts}
			continue
		}
		if cur != nil {
			lines = append(lines, line)
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return d, fmt.Errorf("decode document: %w", err)
	}
	if len(d.Messages) != want {
		return d, fmt.Errorf("decode document: header says %d messages, found %d", want, len(d.Messages))
	}
	return d, nil
}

// blockHeader matches "【n】 sender:" for the expected index n.
func blockHeader(line string, n int) (string, bool) {
	prefix := fmt.Sprintf("【%d】 ", n)
	if !strings.HasPrefix(line, prefix) || !strings.HasSuffix(line, ":") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(line, prefix), ":"), true
}

// MessageLine returns the 1-based line number of message i's block header in
// a body produced by Format, or 1 when i is out of range.
func MessageLine(d Document, i int) int {
	if i < 0 || i >= len(d.Messages) {
		return 1
	}
	line := 5 // title, time, count, blank, then the first block
	for _, m := range d.Messages[:i] {
		line += 1 + strings.Count(m.Content, "\n") + 1 + 1
	}
	return line
}
