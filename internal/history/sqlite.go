package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps interaction records in a local SQLite database.
// Every operation opens and closes its own connection; there is no
// multi-statement atomicity to preserve, and concurrent sessions each
// get an independent connection.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore creates a store backed by the database file at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+s.path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// Init creates the qa_history table if needed and adds the user_id
// column to databases created before it existed. Existing rows are
// never touched; their user_id reads back as NULL.
func (s *SQLiteStore) Init() error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS qa_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME,
		user_id TEXT,
		question TEXT,
		answer TEXT
	);`); err != nil {
		return fmt.Errorf("create qa_history: %w", err)
	}

	hasUserID, err := s.columnExists(db, "user_id")
	if err != nil {
		return err
	}
	if !hasUserID {
		if _, err := db.Exec(`ALTER TABLE qa_history ADD COLUMN user_id TEXT;`); err != nil {
			return fmt.Errorf("add user_id column: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) columnExists(db *sql.DB, column string) (bool, error) {
	rows, err := db.Query(`PRAGMA table_info(qa_history);`)
	if err != nil {
		return false, fmt.Errorf("inspect qa_history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Append inserts one record. An empty UserID is stored as NULL so the
// row is indistinguishable from pre-upgrade anonymous rows.
func (s *SQLiteStore) Append(rec Record) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	var userID any
	if rec.UserID != "" {
		userID = rec.UserID
	}
	if _, err := db.Exec(
		`INSERT INTO qa_history (timestamp, user_id, question, answer) VALUES (?,?,?,?);`,
		rec.Timestamp, userID, rec.Question, rec.Answer,
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// List returns records newest-first, optionally filtered by user and
// capped by a limit.
func (s *SQLiteStore) List(opts ListOptions) ([]Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `SELECT id, timestamp, user_id, question, answer FROM qa_history`
	var args []any
	if opts.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, opts.UserID)
	}
	query += ` ORDER BY id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec    Record
			userID sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &userID, &rec.Question, &rec.Answer); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.UserID = userID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
