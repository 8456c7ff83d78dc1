package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides persistence for analyzed files, their entities, and cached
// explanations.
type Store interface {
	// GetFileHash returns the stored hash for a path, or "" if not indexed.
	GetFileHash(path string) (string, error)
	// UpsertFile inserts or updates a file record and returns its ID.
	// It also deletes any existing entities for the file.
	UpsertFile(f FileRecord) (int64, error)
	// InsertEntities stores the entities of a file.
	InsertEntities(fileID int64, entities []EntityRecord) error
	// FileEntities returns a file's entities in document order.
	FileEntities(path string) ([]EntityRecord, error)
	// FindEntities returns entities with the given name across all files.
	FindEntities(name string) ([]EntityMatch, error)
	// ListFiles summarizes every indexed file.
	ListFiles() ([]FileSummary, error)
	// TopComplexity returns the n most complex scored entities.
	TopComplexity(n int) ([]EntityMatch, error)
	// RemoveMissing deletes files whose path is not in keep.
	RemoveMissing(keep map[string]bool) (int, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// DeleteAll removes all files and entities.
	DeleteAll() error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) UpsertFile(f FileRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&existingID)
	if err == nil {
		// File exists: replace its entities.
		if _, err := tx.Exec("DELETE FROM entities WHERE file_id = ?", existingID); err != nil {
			return 0, err
		}
		_, err = tx.Exec(
			"UPDATE files SET hash = ?, language = ?, indexed_at = CURRENT_TIMESTAMP, size_bytes = ?, diagnostics = ? WHERE id = ?",
			f.Hash, f.Language, f.SizeBytes, f.Diagnostics, existingID,
		)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.Exec(
		"INSERT INTO files (path, hash, language, size_bytes, diagnostics) VALUES (?, ?, ?, ?, ?)",
		f.Path, f.Hash, f.Language, f.SizeBytes, f.Diagnostics,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStore) InsertEntities(fileID int64, entities []EntityRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO entities
		(file_id, ordinal, parent, kind, name, start_byte, end_byte, start_line, end_line, complexity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entities {
		_, err := stmt.Exec(fileID, e.Ordinal, e.Parent, e.Kind, e.Name,
			e.StartByte, e.EndByte, e.StartLine, e.EndLine, e.Complexity)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

const entityColumns = `e.id, e.file_id, e.ordinal, e.parent, e.kind, e.name,
	e.start_byte, e.end_byte, e.start_line, e.end_line, e.complexity`

func scanEntity(rows *sql.Rows, extra ...any) (EntityRecord, error) {
	var e EntityRecord
	dest := []any{&e.ID, &e.FileID, &e.Ordinal, &e.Parent, &e.Kind, &e.Name,
		&e.StartByte, &e.EndByte, &e.StartLine, &e.EndLine, &e.Complexity}
	err := rows.Scan(append(dest, extra...)...)
	return e, err
}

func (s *SQLiteStore) FileEntities(path string) ([]EntityRecord, error) {
	rows, err := s.db.Query(`SELECT `+entityColumns+`
		FROM entities e JOIN files f ON f.id = e.file_id
		WHERE f.path = ? ORDER BY e.ordinal`, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityRecord
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindEntities(name string) ([]EntityMatch, error) {
	rows, err := s.db.Query(`SELECT `+entityColumns+`, f.path, f.language
		FROM entities e JOIN files f ON f.id = e.file_id
		WHERE e.name = ? ORDER BY f.path, e.ordinal`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityMatch
	for rows.Next() {
		var m EntityMatch
		m.Entity, err = scanEntity(rows, &m.FilePath, &m.Language)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TopComplexity(n int) ([]EntityMatch, error) {
	rows, err := s.db.Query(`SELECT `+entityColumns+`, f.path, f.language
		FROM entities e JOIN files f ON f.id = e.file_id
		WHERE e.complexity > 0
		ORDER BY e.complexity DESC, f.path, e.ordinal
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityMatch
	for rows.Next() {
		var m EntityMatch
		m.Entity, err = scanEntity(rows, &m.FilePath, &m.Language)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFiles() ([]FileSummary, error) {
	rows, err := s.db.Query(`
		SELECT f.path, f.language, COUNT(e.id), COALESCE(MAX(e.complexity), 0)
		FROM files f
		LEFT JOIN entities e ON e.file_id = f.id
		GROUP BY f.id
		ORDER BY f.path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileSummary
	for rows.Next() {
		var fs FileSummary
		if err := rows.Scan(&fs.Path, &fs.Language, &fs.Entities, &fs.MaxComplexity); err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RemoveMissing(keep map[string]bool) (int, error) {
	rows, err := s.db.Query("SELECT path FROM files")
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if !keep[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range stale {
		if _, err := s.db.Exec("DELETE FROM files WHERE path = ?", p); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) DeleteAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entities"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
