package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queryplus/queryplus/pkg/metadata"
)

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// SampleSnapshot is a small metadata tree: one local folder with Orders and
// Customers, and a shared folder holding Subscribers.
func SampleSnapshot() metadata.Snapshot {
	return metadata.Snapshot{
		Folders: []metadata.Folder{
			{ID: "local", Name: "Data Extensions", Type: metadata.FolderTypeDataExtension},
			{ID: "shared", Name: "Shared Data Extensions", Type: metadata.FolderTypeSharedDataExtension},
			{ID: "shared-sub", Name: "Imports", ParentID: "shared", Type: metadata.FolderTypeSharedDataExtension},
		},
		DataExtensions: []metadata.DataExtension{
			{
				ID: "de-orders", Name: "Orders", CustomerKey: "orders_key", FolderID: "local",
				Description: "Web orders",
				Fields: []metadata.Field{
					{Name: "OrderID", Type: "Number", IsPrimaryKey: true},
					{Name: "customer_id", Type: "Text", Length: IntPtr(50)},
					{Name: "Order Date", Type: "Date", IsNullable: true},
				},
			},
			{
				ID: "de-customers", Name: "Customers", CustomerKey: "customers_key", FolderID: "local",
				Fields: []metadata.Field{
					{Name: "CustomerID", Type: "Text", Length: IntPtr(50), IsPrimaryKey: true},
					{Name: "Email", Type: "EmailAddress", Length: IntPtr(254)},
				},
			},
			{
				ID: "de-subscribers", Name: "Subscribers", CustomerKey: "subs_key", FolderID: "shared-sub",
				Fields: []metadata.Field{
					{Name: "SubscriberKey", Type: "Text", Length: IntPtr(254), IsPrimaryKey: true},
				},
			},
		},
	}
}

// SampleSnapshotYAML is SampleSnapshot in the import file format.
const SampleSnapshotYAML = `folders:
  - id: local
    name: Data Extensions
    type: dataextension
  - id: shared
    name: Shared Data Extensions
    type: shared_dataextension
data_extensions:
  - id: de-orders
    name: Orders
    customer_key: orders_key
    folder_id: local
    fields:
      - name: OrderID
        type: Number
        primary_key: true
      - name: customer_id
        type: Text
        length: 50
  - id: de-accounts
    name: Accounts
    customer_key: accounts_key
    folder_id: shared
    fields:
      - name: AccountID
        type: Text
        length: 36
        primary_key: true
`

// WriteFile writes content to name inside a temporary directory and returns
// the full path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
