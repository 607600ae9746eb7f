package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS media_records (
    id TEXT PRIMARY KEY,
    file_path TEXT NOT NULL,
    mimetype TEXT NOT NULL,
    description TEXT DEFAULT '',
    hash_visual TEXT,
    hash_md5 TEXT,
    nsfw INTEGER DEFAULT 0,
    chat_id TEXT NOT NULL,
    group_id TEXT,
    sender_id TEXT,
    extracted_text TEXT,
    usage_count INTEGER DEFAULT 0,
    created_at TEXT
);
-- hash_visual carries no unique constraint: duplicate detection is an
-- optimistic check-then-insert and concurrent identical submissions may
-- both land.
CREATE INDEX IF NOT EXISTS idx_media_records_hash_visual ON media_records(hash_visual);
CREATE INDEX IF NOT EXISTS idx_media_records_chat ON media_records(chat_id);

CREATE TABLE IF NOT EXISTS media_tags (
    media_id TEXT REFERENCES media_records(id),
    tag TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (media_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_media_tags_tag ON media_tags(tag);
`

// Database provides thread-safe SQLite operations over the catalog.
type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite pragmas
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=10000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}
	return &Database{db: db}, nil
}

func (d *Database) Initialize() error {
	_, err := d.db.Exec(schemaDDL)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) DB() *sql.DB {
	return d.db
}

// -- MediaRecord operations --

func (d *Database) InsertMediaRecord(m MediaRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO media_records
		(id, file_path, mimetype, description, hash_visual, hash_md5, nsfw,
		 chat_id, group_id, sender_id, extracted_text, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.FilePath, m.Mimetype, m.Description, m.HashVisual, m.HashMD5,
		m.NSFW, m.ChatID, m.GroupID, m.SenderID, m.ExtractedText,
		m.UsageCount, m.CreatedAt,
	)
	return err
}

func (d *Database) GetMediaRecord(id string) (*MediaRecord, error) {
	return d.scanMediaRecord(d.db.QueryRow("SELECT * FROM media_records WHERE id=?", id))
}

// FindByFingerprint returns the oldest record with the given perceptual
// fingerprint, or nil when no near-duplicate exists.
func (d *Database) FindByFingerprint(hashVisual string) (*MediaRecord, error) {
	if hashVisual == "" {
		return nil, nil
	}
	return d.scanMediaRecord(d.db.QueryRow(
		"SELECT * FROM media_records WHERE hash_visual=? ORDER BY created_at LIMIT 1",
		hashVisual,
	))
}

func (d *Database) scanMediaRecord(row *sql.Row) (*MediaRecord, error) {
	var m MediaRecord
	err := row.Scan(
		&m.ID, &m.FilePath, &m.Mimetype, &m.Description, &m.HashVisual,
		&m.HashMD5, &m.NSFW, &m.ChatID, &m.GroupID, &m.SenderID,
		&m.ExtractedText, &m.UsageCount, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (d *Database) UpdateDescription(id, description string) error {
	_, err := d.db.Exec("UPDATE media_records SET description=? WHERE id=?", description, id)
	return err
}

func (d *Database) IncrementUsage(id string) error {
	_, err := d.db.Exec("UPDATE media_records SET usage_count=usage_count+1 WHERE id=?", id)
	return err
}

func (d *Database) CountRecords() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM media_records").Scan(&n)
	return n, err
}

// -- Tag operations --

// ReplaceTags rewrites the ordered tag set for a record.
func (d *Database) ReplaceTags(mediaID string, tags []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM media_tags WHERE media_id=?", mediaID); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT OR IGNORE INTO media_tags (media_id, tag, position) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	pos := 0
	for _, tag := range tags {
		tag = NormalizeTag(tag)
		if tag == "" {
			continue
		}
		if _, err := stmt.Exec(mediaID, tag, pos); err != nil {
			tx.Rollback()
			return err
		}
		pos++
	}
	return tx.Commit()
}

func (d *Database) GetTags(mediaID string) ([]string, error) {
	rows, err := d.db.Query(
		"SELECT tag FROM media_tags WHERE media_id=? ORDER BY position",
		mediaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (d *Database) FindByTag(tag string, limit int) ([]MediaRecord, error) {
	rows, err := d.db.Query(`
		SELECT m.* FROM media_records m
		JOIN media_tags t ON t.media_id = m.id
		WHERE t.tag = ?
		ORDER BY m.usage_count DESC, m.created_at
		LIMIT ?`,
		NormalizeTag(tag), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MediaRecord
	for rows.Next() {
		var m MediaRecord
		err := rows.Scan(
			&m.ID, &m.FilePath, &m.Mimetype, &m.Description, &m.HashVisual,
			&m.HashMD5, &m.NSFW, &m.ChatID, &m.GroupID, &m.SenderID,
			&m.ExtractedText, &m.UsageCount, &m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, m)
	}
	return records, rows.Err()
}
