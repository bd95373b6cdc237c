// Package store keeps a local copy of data extension metadata in SQLite and
// serves it through metadata.Provider.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/queryplus/queryplus/pkg/metadata"
)

// ErrNotOpen is returned when the store has no database connection.
var ErrNotOpen = errors.New("store: database not opened")

// Store is a SQLite-backed metadata.Provider.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ metadata.Provider = (*Store)(nil)

// New wraps an existing connection. The schema is not migrated.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Store{db: db, logger: logger}
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := New(db, logger)
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("metadata store opened", "path", path)
	return s, nil
}

// Path returns the database path given to Open.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Folders returns every folder ordered by name.
func (s *Store) Folders(ctx context.Context) ([]metadata.Folder, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent_id, type FROM folders ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	folders := []metadata.Folder{}
	for rows.Next() {
		var f metadata.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID, &f.Type); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// DataExtensions returns every data extension with its fields, ordered by
// name.
func (s *Store) DataExtensions(ctx context.Context) ([]metadata.DataExtension, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, customer_key, folder_id, description FROM data_extensions ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data extensions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	des := []metadata.DataExtension{}
	index := make(map[string]int)
	for rows.Next() {
		var de metadata.DataExtension
		if err := rows.Scan(&de.ID, &de.Name, &de.CustomerKey, &de.FolderID, &de.Description); err != nil {
			return nil, fmt.Errorf("failed to scan data extension: %w", err)
		}
		index[de.ID] = len(des)
		des = append(des, de)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list data extensions: %w", err)
	}

	// Batch load fields instead of one query per data extension.
	frows, err := s.db.QueryContext(ctx,
		`SELECT data_extension_id, name, type, length, is_primary_key, is_nullable
		 FROM fields ORDER BY data_extension_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer func() { _ = frows.Close() }()

	for frows.Next() {
		var deID string
		f, err := scanField(frows, &deID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[deID]; ok {
			des[i].Fields = append(des[i].Fields, f)
		}
	}
	if err := frows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return des, nil
}

// Fields returns the fields of the data extension whose name or customer key
// matches name case-insensitively. The name may carry the ENT. prefix and
// brackets.
func (s *Store) Fields(ctx context.Context, name string) ([]metadata.Field, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	name = metadata.TrimQualifier(name)

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM data_extensions
		 WHERE name = ? COLLATE NOCASE OR customer_key = ? COLLATE NOCASE
		 ORDER BY name = ? COLLATE NOCASE DESC, id LIMIT 1`,
		name, name, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("data extension %q: %w", name, metadata.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find data extension: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data_extension_id, name, type, length, is_primary_key, is_nullable
		 FROM fields WHERE data_extension_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get fields: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fields := []metadata.Field{}
	for rows.Next() {
		var deID string
		f, err := scanField(rows, &deID)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get fields: %w", err)
	}
	return fields, nil
}

func scanField(rows *sql.Rows, deID *string) (metadata.Field, error) {
	var f metadata.Field
	var length sql.NullInt64
	if err := rows.Scan(deID, &f.Name, &f.Type, &length, &f.IsPrimaryKey, &f.IsNullable); err != nil {
		return f, fmt.Errorf("failed to scan field: %w", err)
	}
	if length.Valid {
		n := int(length.Int64)
		f.Length = &n
	}
	return f, nil
}
