package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/chatcap/internal/parse"
)

var extracted = time.Date(2026, 10, 18, 14, 5, 9, 0, time.Local)

func sampleMessages() []parse.ChatMessage {
	return parse.Parse("Alice: hello\n12:30\nBob: hi there\nhow are you", extracted)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFormatConversation(t *testing.T) {
	body := Format(Document{ExtractedAt: extracted, Messages: sampleMessages()})

	want := "=== 聊天记录 ===\n" +
		"提取时间: 2026-10-18 14:05:09\n" +
		"消息数量: 2\n" +
		"\n" +
		"【1】 Alice:\n" +
		"hello\n" +
		"\n" +
		"【2】 Bob:\n" +
		"hi there\nhow are you\n" +
		"\n"
	require.Equal(t, want, body)
}

func TestFormatRawText(t *testing.T) {
	body := Format(Document{ExtractedAt: extracted, Raw: "no structure"})
	require.Equal(t, "=== 文本内容 ===\n提取时间: 2026-10-18 14:05:09\n\nno structure", body)
}

func TestDecodeRoundTrip(t *testing.T) {
	doc := Document{ExtractedAt: extracted, Messages: sampleMessages()}

	got, err := Decode(Format(doc), time.Local)
	require.NoError(t, err)
	require.Equal(t, doc.ExtractedAt, got.ExtractedAt)
	require.Equal(t, doc.Count(), got.Count())
	for i := range doc.Messages {
		require.Equal(t, doc.Messages[i].Sender, got.Messages[i].Sender)
		require.Equal(t, doc.Messages[i].Content, got.Messages[i].Content)
	}

	raw, err := Decode(Format(Document{ExtractedAt: extracted, Raw: "line one\n\nline two"}), time.Local)
	require.NoError(t, err)
	require.Empty(t, raw.Messages)
	require.Equal(t, "line one\n\nline two", raw.Raw)
}

func TestDecodeRejectsForeignText(t *testing.T) {
	_, err := Decode("hello", time.Local)
	require.Error(t, err)
	_, err = Decode("=== 聊天记录 ===\n提取时间: 2026-10-18 14:05:09\n消息数量: 3\n\n【1】 A:\nx\n\n", time.Local)
	require.ErrorContains(t, err, "header says 3")
}

func TestMessageLine(t *testing.T) {
	doc := Document{ExtractedAt: extracted, Messages: []parse.ChatMessage{
		{Sender: "A", Content: "one\ntwo"},
		{Sender: "B", Content: "three"},
	}}
	require.Equal(t, 5, MessageLine(doc, 0))
	require.Equal(t, 9, MessageLine(doc, 1))
	require.Equal(t, 1, MessageLine(doc, 7))
}

func TestSaveThenRead(t *testing.T) {
	now := time.UnixMilli(1760796309123)
	s := NewStoreWithClock(t.TempDir(), fixedClock(now))

	rec, err := s.Save(Document{Messages: sampleMessages()})
	require.NoError(t, err)
	require.Equal(t, "chat_1760796309123.txt", rec.Name)
	require.Equal(t, filepath.Join(s.Dir(), rec.Name), rec.Path)

	body, err := s.Read(rec.Path)
	require.NoError(t, err)
	onDisk, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	require.Equal(t, string(onDisk), body)
	require.Equal(t, int64(len(onDisk)), rec.Size)
	require.Contains(t, body, "消息数量: 2\n")
	require.Equal(t, now, rec.CapturedAt())

	doc, err := s.Load(rec.Path)
	require.NoError(t, err)
	require.Equal(t, 2, doc.Count())
}

func TestSaveSameMillisecondProbesNextName(t *testing.T) {
	s := NewStoreWithClock(t.TempDir(), fixedClock(time.UnixMilli(1000)))

	a, err := s.Save(Document{Raw: "a"})
	require.NoError(t, err)
	b, err := s.Save(Document{Raw: "b"})
	require.NoError(t, err)
	require.Equal(t, "chat_1000.txt", a.Name)
	require.Equal(t, "chat_1001.txt", b.Name)
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	t1 := time.UnixMilli(1_700_000_000_000)
	t2 := t1.Add(time.Minute)

	first, err := NewStoreWithClock(dir, fixedClock(t1)).Save(Document{Raw: "first"})
	require.NoError(t, err)
	second, err := NewStoreWithClock(dir, fixedClock(t2)).Save(Document{Raw: "second"})
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(first.Path, t1, t1))
	require.NoError(t, os.Chtimes(second.Path, t2, t2))

	s := NewStore(dir)
	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, second.Name, records[0].Name)
	require.Equal(t, first.Name, records[1].Name)

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// listings reflect the directory, not an earlier result
	require.NoError(t, os.Remove(second.Path))
	records, err = s.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestListMissingDir(t *testing.T) {
	records, err := NewStore(filepath.Join(t.TempDir(), "none")).List()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestMissingPaths(t *testing.T) {
	s := NewStore(t.TempDir())
	missing := filepath.Join(s.Dir(), "chat_404.txt")

	_, err := s.Read(missing)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Export(missing, t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Delete(missing)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAndExport(t *testing.T) {
	s := NewStoreWithClock(t.TempDir(), fixedClock(time.UnixMilli(42)))
	rec, err := s.Save(Document{Messages: sampleMessages()})
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, rec.Name), []byte("stale"), 0o644))

	out, err := s.Export(rec.Path, dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dest, rec.Name), out)
	want, err := os.ReadFile(rec.Path)
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, want, got)

	ok, err := s.Delete(rec.Path)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.Read(rec.Path)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestResolve(t *testing.T) {
	s := NewStore("/data/docs")
	require.Equal(t, filepath.Join("/data/docs", "chat_1.txt"), s.Resolve("chat_1.txt"))
	require.Equal(t, "/tmp/chat_1.txt", s.Resolve("/tmp/chat_1.txt"))
	require.Equal(t, "./chat_1.txt", s.Resolve("./chat_1.txt"))
}

func TestRecordFormatting(t *testing.T) {
	r := Record{Name: "notes.txt", Size: 2048, LastModified: extracted}
	require.Equal(t, "2.0 KiB", r.FormattedSize())
	require.Equal(t, "2026-10-18 14:05", r.FormattedDate())
	require.Equal(t, extracted, r.CapturedAt())
}
