package entity

// NoteFilter narrows a note listing. Zero values mean "no filter".
type NoteFilter struct {
	OwnerID   int64
	Tag       string
	From      int64 // created-at lower bound, epoch millis
	To        int64 // created-at upper bound, epoch millis
	Favorites bool
	Archived  bool // when false, archived notes are excluded
	Page      int
	PageSize  int
}
