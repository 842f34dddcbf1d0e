package index

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/logging"
)

const summaryRunes = 80

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// IndexAll brings the index in line with the store: new and changed files are
// decoded and inserted, unchanged ones skipped and vanished ones pruned.
func IndexAll(db *DB, store *document.Store, log logging.Logger) (Stats, error) {
	var stats Stats
	if log == nil {
		log = logging.Nop{}
	}

	records, err := store.List()
	if err != nil {
		return stats, fmt.Errorf("list documents: %w", err)
	}
	stats.Scanned = len(records)

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.Name] = struct{}{}

		needs, err := needsUpdate(db, rec)
		if err != nil {
			stats.Errors++
			log.Warn("read index state", logging.String("file", rec.Name), logging.Err(err))
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}

		body, err := store.Read(rec.Path)
		if err != nil {
			stats.Errors++
			log.Warn("read document", logging.String("file", rec.Name), logging.Err(err))
			continue
		}
		doc, err := document.Decode(body, time.Local)
		if err != nil {
			// not one of ours; index the text as is
			log.Debug("index as plain text", logging.String("file", rec.Name), logging.Err(err))
			doc = document.Document{ExtractedAt: rec.CapturedAt(), Raw: body}
		}

		if err := indexDocument(db, rec, doc); err != nil {
			stats.Errors++
			log.Warn("index document", logging.String("file", rec.Name), logging.Err(err))
			continue
		}
		stats.Updated++
	}

	pruned, err := pruneDocuments(db, seen)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

func needsUpdate(db *DB, rec document.Record) (bool, error) {
	st, err := db.fileState(rec.Name)
	if err != nil {
		return false, err
	}
	if st == nil {
		return true, nil
	}
	return st.Mtime != rec.LastModified.UnixNano() || st.Size != rec.Size, nil
}

func indexDocument(db *DB, rec document.Record, doc document.Document) error {
	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteDocumentTx(tx, rec.Name); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO documents (name, path, extracted_at, message_count, summary, mtime, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Name,
		rec.Path,
		doc.ExtractedAt.UnixMilli(),
		doc.Count(),
		summarize(doc),
		rec.LastModified.UnixNano(),
		rec.Size,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (doc_name, msg_id, sender, content, line_number)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if doc.Count() == 0 {
		// plain text body starts after title, time and a blank line
		if strings.TrimSpace(doc.Raw) != "" {
			if _, err := stmt.Exec(rec.Name, 0, "", doc.Raw, 4); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	for i, m := range doc.Messages {
		if _, err := stmt.Exec(rec.Name, i, m.Sender, m.Content, document.MessageLine(doc, i)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// summarize is the first message, flattened to one line.
func summarize(doc document.Document) string {
	text := doc.Raw
	if doc.Count() > 0 {
		m := doc.Messages[0]
		text = m.Sender + ": " + m.Content
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > summaryRunes {
		text = string([]rune(text)[:summaryRunes]) + "..."
	}
	return text
}

func pruneDocuments(db *DB, seen map[string]struct{}) (int, error) {
	all, err := db.allDocumentNames()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for name := range all {
		if _, ok := seen[name]; !ok {
			if err := db.DeleteDocument(name); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
