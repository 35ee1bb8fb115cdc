package entity

import "strings"

const (
	VisibilityPrivate = "PRIVATE"
	VisibilityUsers   = "USERS"
	VisibilityPublic  = "PUBLIC"
)

const (
	AttachmentTypeFile  = "FILE"
	AttachmentTypeProxy = "PROXY"
)

// Attachment is one entry of a note's authoritative attachment list.
// Entries of type FILE are backed by a blob at "{noteId}/{attachmentId}";
// PROXY entries point at externally hosted media and own no blob.
type Attachment struct {
	Type       string `json:"type"`
	ID         int64  `json:"id,omitempty"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type,omitempty"`
	PublicID   string `json:"public_id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

type Note struct {
	ID           int64        `gorm:"primaryKey"`
	OwnerID      int64        `gorm:"not null;index"`
	Content      string       `gorm:"not null"`
	Attachments  []Attachment `gorm:"serializer:json;not null"`
	InlineImages []string     `gorm:"serializer:json;not null"`
	InlineVideos []string     `gorm:"serializer:json;not null"`
	Visibility   string       `gorm:"not null;default:PRIVATE"`
	IsPinned     bool         `gorm:"not null;default:false"`
	IsFavorited  bool         `gorm:"not null;default:false"`
	IsArchived   bool         `gorm:"not null;default:false"`
	CreatedAt    int64        `gorm:"not null"`
	UpdatedAt    int64        `gorm:"not null;autoUpdateTime:false"`
}

// IsEmpty reports whether the note holds no content at all. An empty note is
// not a valid persisted state; updates that would produce one cascade-delete
// the note instead.
func (n *Note) IsEmpty() bool {
	return strings.TrimSpace(n.Content) == "" &&
		len(n.Attachments) == 0 &&
		len(n.InlineImages) == 0 &&
		len(n.InlineVideos) == 0
}

func (n *Note) FindAttachment(id int64) *Attachment {
	for i := range n.Attachments {
		if n.Attachments[i].ID == id {
			return &n.Attachments[i]
		}
	}
	return nil
}

func (n *Note) RemoveAttachment(id int64) bool {
	for i := range n.Attachments {
		if n.Attachments[i].ID == id {
			n.Attachments = append(n.Attachments[:i], n.Attachments[i+1:]...)
			return true
		}
	}
	return false
}
