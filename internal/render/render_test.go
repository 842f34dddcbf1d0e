package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/parse"
)

func TestWrapLineCountsDisplayWidth(t *testing.T) {
	require.Equal(t, []string{"你好", "世界"}, wrapLine("你好世界", 4))
	require.Equal(t, []string{"abc", "de"}, wrapLine("abcde", 3))
	require.Equal(t, []string{""}, wrapLine("", 10))

	colored := colorBoldRed + "ab" + colorReset + "cd"
	require.Equal(t, []string{colorBoldRed + "ab" + colorReset + "c", "d"}, wrapLine(colored, 3))
}

func TestHighlightKeywords(t *testing.T) {
	got := highlightKeywords("Deploy the deploy", "deploy AND")
	require.Equal(t, colorBoldRed+"Deploy"+colorReset+" the "+colorBoldRed+"deploy"+colorReset, got)
	require.Equal(t, "明天"+colorBoldRed+"吃饭"+colorReset, highlightKeywords("明天吃饭", "吃饭"))
	require.Equal(t, "plain", highlightKeywords("plain", ""))
}

func TestDocumentMarksHitMessage(t *testing.T) {
	doc := document.Document{
		ExtractedAt: time.Date(2026, 10, 18, 8, 0, 0, 0, time.Local),
		Messages: []parse.ChatMessage{
			{Sender: "Alice", Content: "hi"},
			{Sender: "Bob", Content: "line one\nline two"},
		},
	}

	out, hit := Document("chat_1.txt", doc, Options{HitMessage: 1})
	lines := strings.Split(out, "\n")
	require.Equal(t, 5, hit)
	require.Contains(t, lines[hit], ">> 2. Bob <<")
	require.Equal(t, "  line one", lines[hit+1])
	require.Contains(t, lines[0], "2 messages")

	_, hit = Document("chat_1.txt", doc, Options{HitMessage: -1})
	require.Equal(t, -1, hit)
}

func TestDocumentPlainText(t *testing.T) {
	out, hit := Document("notes.txt", document.Document{Raw: "free text"}, Options{HitMessage: -1})
	require.Equal(t, -1, hit)
	require.Contains(t, out, "plain text")
	require.Contains(t, out, "free text\n")
}

func TestSenderColorIsStable(t *testing.T) {
	require.Equal(t, senderColor("Alice"), senderColor("Alice"))
	require.Equal(t, colorDim, senderColor(parse.UnknownSender))
}
