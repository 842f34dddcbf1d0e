package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS documents (
    name          TEXT PRIMARY KEY,
    path          TEXT NOT NULL,
    extracted_at  INTEGER NOT NULL DEFAULT 0,
    message_count INTEGER NOT NULL DEFAULT 0,
    summary       TEXT NOT NULL DEFAULT '',
    mtime         INTEGER NOT NULL DEFAULT 0,
    size          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    doc_name    TEXT NOT NULL,
    msg_id      INTEGER NOT NULL,
    sender      TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL,
    line_number INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (doc_name, msg_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    sender,
    content,
    content=messages,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, sender, content) VALUES (new.rowid, new.sender, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, sender, content) VALUES('delete', old.rowid, old.sender, old.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, sender, content) VALUES('delete', old.rowid, old.sender, old.content);
    INSERT INTO messages_fts(rowid, sender, content) VALUES (new.rowid, new.sender, new.content);
END;
`

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	// schema version tracking for forced re-index
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("init meta: %w", err)
	}
	d := &DB{db: db}
	d.migrateSchemaVersion()

	return d, nil
}

// schemaVersion should be bumped whenever document decoding changes, so
// every file is indexed again.
const schemaVersion = "1"

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		d.db.Exec("UPDATE documents SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type fileState struct {
	Mtime int64
	Size  int64
}

func (d *DB) fileState(name string) (*fileState, error) {
	var st fileState
	err := d.db.QueryRow(
		"SELECT mtime, size FROM documents WHERE name = ?",
		name,
	).Scan(&st.Mtime, &st.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (d *DB) allDocumentNames() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT name FROM documents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names[n] = struct{}{}
	}
	return names, rows.Err()
}

// DeleteDocument drops a document and its messages from the index.
func (d *DB) DeleteDocument(name string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteDocumentTx(tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteDocumentTx(tx *sql.Tx, name string) error {
	if _, err := tx.Exec("DELETE FROM messages WHERE doc_name = ?", name); err != nil {
		return err
	}
	_, err := tx.Exec("DELETE FROM documents WHERE name = ?", name)
	return err
}

func (d *DB) DocumentCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

type MessageRow struct {
	DocName    string
	MsgID      int
	Sender     string
	Content    string
	LineNumber int
}

// Messages returns a document's indexed messages in order.
func (d *DB) Messages(name string) ([]MessageRow, error) {
	rows, err := d.db.Query(
		"SELECT doc_name, msg_id, sender, content, line_number FROM messages WHERE doc_name = ? ORDER BY msg_id",
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.DocName, &m.MsgID, &m.Sender, &m.Content, &m.LineNumber); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
