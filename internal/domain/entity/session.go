package entity

// Session is the authenticated caller, handed down by the auth layer.
type Session struct {
	UserID  int64
	IsAdmin bool
}
