package render

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/parse"
)

const (
	colorReset   = "\033[0m"
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

// senderColors are picked per sender name so one person keeps one color.
var senderColors = []string{
	"\033[1;34m", // bold blue
	"\033[1;32m", // bold green
	"\033[1;36m", // bold cyan
	"\033[1;35m", // bold magenta
	"\033[1;33m", // bold yellow
}

type Options struct {
	Width      int    // wrap width (0 = no wrap)
	Query      string // search query for keyword highlighting
	HitMessage int    // 0-based message to mark, -1 for none
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

func senderColor(sender string) string {
	if sender == "" || sender == parse.UnknownSender {
		return colorDim
	}
	h := fnv.New32a()
	h.Write([]byte(sender))
	return senderColors[h.Sum32()%uint32(len(senderColors))]
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	var filtered []string
	for _, t := range strings.Fields(query) {
		t = strings.Trim(t, `"*`)
		if t != "" && !fts5Operators[t] {
			filtered = append(filtered, t)
		}
	}
	for _, term := range filtered {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			rest := text[i:]
			folded := strings.ToLower(rest)
			if len(folded) != len(rest) {
				// case folding changed byte offsets; fall back to exact match
				folded, lower = rest, term
			}
			idx := strings.Index(folded, lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth && visW > 0 {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// Document renders a stored conversation for the terminal and returns the
// content plus the 0-based line of the hit message header (-1 if none).
func Document(name string, doc document.Document, opts Options) (string, int) {
	var b strings.Builder
	hitLine := -1
	lineCount := 0
	separator := colorDim + "--------------------------------------------------" + colorReset

	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	at := doc.ExtractedAt.Format(document.TimeLayout)
	if doc.Count() == 0 {
		writeLine(fmt.Sprintf("%s--- %s [%s] plain text ---%s", colorDim, name, at, colorReset))
		if strings.TrimSpace(doc.Raw) == "" {
			writeLine("(empty document)")
			return b.String(), -1
		}
		for _, l := range strings.Split(highlightKeywords(doc.Raw, opts.Query), "\n") {
			writeLine(l)
		}
		return b.String(), -1
	}

	writeLine(fmt.Sprintf("%s--- %s [%s] %d messages ---%s", colorDim, name, at, doc.Count(), colorReset))

	for i, m := range doc.Messages {
		if i > 0 {
			writeLine(separator)
		}

		label := fmt.Sprintf("%d. %s", i+1, m.Sender)
		if i == opts.HitMessage {
			hitLine = lineCount
			writeLine(fmt.Sprintf("%s>> %s <<%s", colorHit, label, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s%s", senderColor(m.Sender), label, colorReset))
		}

		text := highlightKeywords(m.Content, opts.Query)
		text = indentLines(text, "  ")
		for _, tl := range strings.Split(text, "\n") {
			writeLine(tl)
		}
		writeLine("") // blank line after message
	}

	return b.String(), hitLine
}

// Truncate cuts s to width display columns, adding "…" when it was cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
