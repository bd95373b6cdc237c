// Package metadata defines the read-only folder, data extension and field
// model consumed by completion, join suggestions and lint rules.
package metadata

import (
	"context"
	"errors"
	"strings"
)

// Folder types that mark the shared (enterprise) tree.
const (
	FolderTypeSharedData          = "shared_data"
	FolderTypeSharedDataExtension = "shared_dataextension"
	FolderTypeDataExtension       = "dataextension"
)

// SharedPrefix qualifies data extensions that live in a shared folder.
const SharedPrefix = "ENT."

// ErrNotFound is returned when a data extension does not exist.
var ErrNotFound = errors.New("metadata: not found")

// Folder is a node of the data extension folder tree.
type Folder struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	ParentID string `yaml:"parent_id,omitempty" json:"parentId,omitempty"`
	Type     string `yaml:"type" json:"type"`
}

// Field is a typed column of a data extension.
type Field struct {
	Name         string `yaml:"name" json:"name"`
	Type         string `yaml:"type" json:"type"`
	Length       *int   `yaml:"length,omitempty" json:"length,omitempty"`
	IsPrimaryKey bool   `yaml:"primary_key,omitempty" json:"isPrimaryKey"`
	IsNullable   bool   `yaml:"nullable,omitempty" json:"isNullable"`
}

// DataExtension is a table-like object with named, typed fields.
type DataExtension struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	CustomerKey string  `yaml:"customer_key" json:"customerKey"`
	FolderID    string  `yaml:"folder_id" json:"folderId"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Provider serves metadata snapshots. Implementations are read-only from the
// caller's point of view and may be eventually consistent.
type Provider interface {
	Folders(ctx context.Context) ([]Folder, error)
	DataExtensions(ctx context.Context) ([]DataExtension, error)
	// Fields returns the fields of the data extension whose name or customer
	// key matches name case-insensitively, or ErrNotFound.
	Fields(ctx context.Context, name string) ([]Field, error)
}

// SharedFolderIDs returns the IDs of shared folders and all their descendants.
func SharedFolderIDs(folders []Folder) map[string]struct{} {
	children := make(map[string][]string, len(folders))
	var queue []string
	for _, f := range folders {
		children[f.ParentID] = append(children[f.ParentID], f.ID)
		if f.Type == FolderTypeSharedData || f.Type == FolderTypeSharedDataExtension {
			queue = append(queue, f.ID)
		}
	}

	shared := make(map[string]struct{})
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := shared[id]; seen {
			continue
		}
		shared[id] = struct{}{}
		queue = append(queue, children[id]...)
	}
	return shared
}

// Snapshot is an in-memory Provider, also the on-disk import format.
type Snapshot struct {
	Folders        []Folder        `yaml:"folders"`
	DataExtensions []DataExtension `yaml:"data_extensions"`
}

// SnapshotProvider adapts a Snapshot to the Provider interface.
type SnapshotProvider struct {
	snap Snapshot
}

// NewSnapshotProvider serves snap.
func NewSnapshotProvider(snap Snapshot) *SnapshotProvider {
	return &SnapshotProvider{snap: snap}
}

func (p *SnapshotProvider) Folders(_ context.Context) ([]Folder, error) {
	return p.snap.Folders, nil
}

func (p *SnapshotProvider) DataExtensions(_ context.Context) ([]DataExtension, error) {
	return p.snap.DataExtensions, nil
}

func (p *SnapshotProvider) Fields(_ context.Context, name string) ([]Field, error) {
	name = TrimQualifier(name)
	for _, de := range p.snap.DataExtensions {
		if strings.EqualFold(de.Name, name) || strings.EqualFold(de.CustomerKey, name) {
			return de.Fields, nil
		}
	}
	return nil, ErrNotFound
}

// TrimQualifier turns "ENT.[Name]", "[Name]" or "Name" into "Name".
func TrimQualifier(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= len(SharedPrefix) && strings.EqualFold(name[:len(SharedPrefix)], SharedPrefix) {
		name = name[len(SharedPrefix):]
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "["), "]")
}
