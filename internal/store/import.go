package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/queryplus/queryplus/pkg/metadata"
)

// Import records one snapshot import.
type Import struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	Folders        int       `json:"folders"`
	DataExtensions int       `json:"dataExtensions"`
	ImportedAt     time.Time `json:"importedAt"`
}

// ReadSnapshotFile parses a YAML metadata snapshot.
func ReadSnapshotFile(path string) (metadata.Snapshot, error) {
	var snap metadata.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	for i, de := range snap.DataExtensions {
		if de.ID == "" || de.Name == "" {
			return snap, fmt.Errorf("snapshot %s: data extension %d needs an id and a name", path, i)
		}
	}
	return snap, nil
}

// ImportFile reads the snapshot at path and replaces the stored metadata.
func (s *Store) ImportFile(ctx context.Context, path string) (*Import, error) {
	snap, err := ReadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	return s.ImportSnapshot(ctx, path, snap)
}

// ImportSnapshot replaces all stored metadata with snap in one transaction.
func (s *Store) ImportSnapshot(ctx context.Context, source string, snap metadata.Snapshot) (*Import, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM fields`, `DELETE FROM data_extensions`, `DELETE FROM folders`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to clear metadata: %w", err)
		}
	}

	for _, f := range snap.Folders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folders (id, name, parent_id, type) VALUES (?, ?, ?, ?)`,
			f.ID, f.Name, f.ParentID, f.Type,
		); err != nil {
			return nil, fmt.Errorf("failed to insert folder %s: %w", f.ID, err)
		}
	}

	for _, de := range snap.DataExtensions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO data_extensions (id, name, customer_key, folder_id, description) VALUES (?, ?, ?, ?, ?)`,
			de.ID, de.Name, de.CustomerKey, de.FolderID, de.Description,
		); err != nil {
			return nil, fmt.Errorf("failed to insert data extension %s: %w", de.Name, err)
		}
		for pos, f := range de.Fields {
			var length any
			if f.Length != nil {
				length = *f.Length
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fields (data_extension_id, position, name, type, length, is_primary_key, is_nullable)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				de.ID, pos, f.Name, f.Type, length, f.IsPrimaryKey, f.IsNullable,
			); err != nil {
				return nil, fmt.Errorf("failed to insert field %s.%s: %w", de.Name, f.Name, err)
			}
		}
	}

	imp := &Import{
		ID:             uuid.New().String(),
		Source:         source,
		Folders:        len(snap.Folders),
		DataExtensions: len(snap.DataExtensions),
		ImportedAt:     time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imports (id, source, folders, data_extensions, imported_at) VALUES (?, ?, ?, ?, ?)`,
		imp.ID, imp.Source, imp.Folders, imp.DataExtensions, imp.ImportedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	s.logger.Info("metadata imported", "source", source, "folders", imp.Folders, "data_extensions", imp.DataExtensions)
	return imp, nil
}

// LastImport returns the most recent import, or nil if nothing was imported.
func (s *Store) LastImport(ctx context.Context) (*Import, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	imp := &Import{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, folders, data_extensions, imported_at FROM imports ORDER BY imported_at DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Source, &imp.Folders, &imp.DataExtensions, &imp.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last import: %w", err)
	}
	return imp, nil
}
