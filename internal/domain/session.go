package domain

import "slices"

// SessionIDPreviewLength is how much of a session id is shown in status output and logs.
const SessionIDPreviewLength = 8

// SessionData is the server-side state kept for a session.
type SessionData struct {
	// UserID is the authenticated user, zero when anonymous
	UserID UserID `json:"userId"`
	// Flash holds one-shot messages for the next rendered page
	Flash []string `json:"flash,omitempty"`
}

// Session is the per-request view of a client's session. It is read-only
// except through its mutators, which mark it modified so it gets committed.
type Session struct {
	id       string
	data     SessionData
	isNew    bool
	modified bool
}

// NewSession returns a session with the given id that has not been stored yet.
func NewSession(id string) *Session {
	return &Session{id: id, isNew: true}
}

// RestoreSession returns a session loaded from a store.
func RestoreSession(id string, data SessionData) *Session {
	return &Session{id: id, data: data}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// PreviewID returns a truncated session id suitable for display.
func (s *Session) PreviewID() string {
	return PreviewSessionID(s.id)
}

// PreviewSessionID truncates a session id for display in status output and logs.
func PreviewSessionID(id string) string {
	if len(id) > SessionIDPreviewLength {
		id = id[:SessionIDPreviewLength]
	}

	return id + "..."
}

// IsNew reports whether the session has never been stored.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool {
	return s.modified
}

// UserID returns the authenticated user id, zero when anonymous.
func (s *Session) UserID() UserID {
	return s.data.UserID
}

// Authenticated reports whether a user id is set.
func (s *Session) Authenticated() bool {
	return !s.data.UserID.IsZero()
}

// SetUserID marks the session as authenticated for the given user.
func (s *Session) SetUserID(id UserID) {
	s.data.UserID = id
	s.modified = true
}

// AddFlash queues a one-shot message.
func (s *Session) AddFlash(message string) {
	s.data.Flash = append(s.data.Flash, message)
	s.modified = true
}

// Flashes drains and returns the queued messages.
func (s *Session) Flashes() []string {
	if len(s.data.Flash) == 0 {
		return nil
	}

	flashes := s.data.Flash
	s.data.Flash = nil
	s.modified = true

	return flashes
}

// Data returns a copy of the session's state for storage.
func (s *Session) Data() SessionData {
	return SessionData{
		UserID: s.data.UserID,
		Flash:  slices.Clone(s.data.Flash),
	}
}

// MarkStored clears the new and modified flags after a successful commit.
func (s *Session) MarkStored() {
	s.isNew = false
	s.modified = false
}
