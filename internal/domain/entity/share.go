package entity

// Share records are ephemeral and live in the TTL store, never in SQLite.

// PublicMemo is the canonical "this link is live" record for a share.
type PublicMemo struct {
	NoteID int64 `json:"note_id"`
}

const (
	LocatorAttachment = "ATTACHMENT"
	LocatorUpload     = "UPLOAD"
	LocatorProxy      = "PROXY"
)

// PublicFile is the resolvable target of a public file link. Key is a blob
// key for ATTACHMENT/UPLOAD locators and a full URL for PROXY locators.
type PublicFile struct {
	Locator     string `json:"locator"`
	Key         string `json:"key"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}
