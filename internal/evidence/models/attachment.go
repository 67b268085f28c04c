package models

import (
	"time"

	id "evidentia/pkg/domain"
)

// Attachment is a file appended to a draft. It is never mutated after
// creation; SHA256 is computed server-side over the full stream.
type Attachment struct {
	ID          id.AttachmentID `json:"attachment_id"`
	DraftID     id.DraftID      `json:"draft_id"`
	TenantID    id.TenantID     `json:"tenant_id"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"content_type"`
	SizeBytes   int64           `json:"size_bytes"`
	SHA256      string          `json:"sha256"`
	StorageRef  string          `json:"storage_ref"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsHashed reports whether the server-side digest is present.
func (a Attachment) IsHashed() bool {
	return len(a.SHA256) == 64
}

// Descriptor is the part of an attachment that enters the sealed metadata.
func (a Attachment) Descriptor() AttachmentDescriptor {
	return AttachmentDescriptor{
		Filename:    a.Filename,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		SHA256:      a.SHA256,
	}
}

// AttachmentDescriptor identifies attachment content inside a sealed record.
type AttachmentDescriptor struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	SHA256      string `json:"sha256"`
}
