package search

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Zuo-Peng/chatcap/internal/index"
)

type Result struct {
	DocName      string
	Path         string
	MsgID        int
	ExtractedAt  time.Time
	MessageCount int
	Summary      string
	Snippet      string
	Sender       string
	LineNumber   int
	Rank         float64
}

type Options struct {
	Query  string
	Sender string    // "" = all senders
	Since  time.Time // zero = no filter
	Limit  int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
// unicode61 keeps a run of ideographs as one token, so these queries need a
// substring scan instead of MATCH.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	runes := []rune(text)
	qRunes := []rune(query)
	runePos := indexFold(runes, qRunes)
	if runePos < 0 {
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}
	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

// indexFold is a case-insensitive rune index of needle in hay, -1 if absent.
func indexFold(hay, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j, r := range needle {
			if unicode.ToLower(hay[i+j]) != unicode.ToLower(r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ftsQuery quotes each term so punctuation typed by a user (colons, dashes)
// is matched literally. A trailing * keeps its prefix meaning.
func ftsQuery(q string) string {
	var terms []string
	for _, f := range strings.Fields(q) {
		star := ""
		if strings.HasSuffix(f, "*") && len(f) > 1 {
			f, star = strings.TrimSuffix(f, "*"), "*"
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`+star)
	}
	return strings.Join(terms, " ")
}

func Search(db *index.DB, opts Options) ([]Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// Fetch more results before dedup so we still have enough after
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	// Deduplicate: keep only the best-ranked result per document
	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.DocName] {
			continue
		}
		seen[r.DocName] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

func filters(opts Options) ([]string, []interface{}) {
	var conditions []string
	var args []interface{}
	if opts.Sender != "" {
		conditions = append(conditions, "m.sender = ?")
		args = append(args, opts.Sender)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "d.extracted_at >= ?")
		args = append(args, opts.Since.UnixMilli())
	}
	return conditions, args
}

func searchFTS(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"messages_fts MATCH ?"}
	args := []interface{}{ftsQuery(opts.Query)}
	c, a := filters(opts)
	conditions = append(conditions, c...)
	args = append(args, a...)

	query := fmt.Sprintf(`
		SELECT
			m.doc_name,
			d.path,
			m.msg_id,
			d.extracted_at,
			d.message_count,
			d.summary,
			snippet(messages_fts, 1, '>>>','<<<', '...', 40) as snip,
			m.sender,
			m.line_number,
			bm25(messages_fts, 0.5, 1.0) as rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN documents d ON m.doc_name = d.name
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var ms int64
		if err := rows.Scan(
			&r.DocName, &r.Path, &r.MsgID, &ms,
			&r.MessageCount, &r.Summary, &r.Snippet,
			&r.Sender, &r.LineNumber, &r.Rank,
		); err != nil {
			return nil, err
		}
		r.ExtractedAt = time.UnixMilli(ms)
		results = append(results, r)
	}
	return results, rows.Err()
}

func searchLike(db *index.DB, opts Options) ([]Result, error) {
	conditions := []string{"m.content LIKE ?"}
	args := []interface{}{"%" + opts.Query + "%"}
	c, a := filters(opts)
	conditions = append(conditions, c...)
	args = append(args, a...)

	query := fmt.Sprintf(`
		SELECT
			m.doc_name,
			d.path,
			m.msg_id,
			d.extracted_at,
			d.message_count,
			d.summary,
			m.content,
			m.sender,
			m.line_number
		FROM messages m
		JOIN documents d ON m.doc_name = d.name
		WHERE %s
		ORDER BY d.extracted_at DESC, m.msg_id
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var ms int64
		var content string
		if err := rows.Scan(
			&r.DocName, &r.Path, &r.MsgID, &ms,
			&r.MessageCount, &r.Summary, &content,
			&r.Sender, &r.LineNumber,
		); err != nil {
			return nil, err
		}
		r.ExtractedAt = time.UnixMilli(ms)
		r.Snippet = makeSnippet(content, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAll returns every indexed document, newest first. MsgID is -1.
func ListAll(db *index.DB, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Raw().Query(`
		SELECT name, path, extracted_at, message_count, summary
		FROM documents
		ORDER BY extracted_at DESC, name DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		var ms int64
		if err := rows.Scan(&r.DocName, &r.Path, &ms, &r.MessageCount, &r.Summary); err != nil {
			return nil, err
		}
		r.ExtractedAt = time.UnixMilli(ms)
		r.MsgID = -1
		results = append(results, r)
	}
	return results, rows.Err()
}
