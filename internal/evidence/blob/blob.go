// Package blob stores attachment content. Objects are written once under a
// tenant-scoped key and never overwritten; the store streams content and never
// spools it to local disk.
package blob

import (
	"context"
	"io"
	"strings"

	id "evidentia/pkg/domain"
)

// PutOptions describe an upload. Size is -1 when unknown.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what the backend reports for a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
}

// Storage is an S3-compatible object store.
type Storage interface {
	// Put streams r under key.
	Put(ctx context.Context, key string, r io.Reader, opt PutOptions) (ObjectInfo, error)
	// Get returns the object content. Callers close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object; used only to clean up after a failed attach.
	Delete(ctx context.Context, key string) error
}

// AttachmentKey is the object key for an attachment. It embeds the tenant so
// one tenant's keys can never address another's objects.
func AttachmentKey(tenantID id.TenantID, draftID id.DraftID, attachmentID id.AttachmentID) string {
	return strings.Join([]string{"tenants", tenantID.String(), "drafts", draftID.String(), attachmentID.String()}, "/")
}
