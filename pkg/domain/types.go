package domain

// NoteId is the opaque primary key of a note, and therefore of the hub that
// owns its live replica.
type NoteId string

// ClientId is the numeric id the CRDT layer assigns to a connected
// participant. Awareness entries are scoped by this id.
type ClientId uint64

// User is the opaque identity resolved from a session. The core only reads
// its fields; authentication itself lives outside this module.
type User struct {
	ID       string
	Username string
}

// Note is the opaque note record resolved from an id or alias.
type Note struct {
	ID    NoteId
	Alias string
}

// Revision is the latest saved content of a note, as returned by storage.
type Revision struct {
	Content string
}

// MessageType is the one-byte-tag discriminant on the wire (§6 of the spec).
type MessageType uint64

const (
	MessageTypeSync      MessageType = 0
	MessageTypeAwareness MessageType = 1
	MessageTypeHedgedoc  MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSync:
		return "SYNC"
	case MessageTypeAwareness:
		return "AWARENESS"
	case MessageTypeHedgedoc:
		return "HEDGEDOC"
	default:
		return "UNKNOWN"
	}
}

// SessionService resolves a session id (extracted from the session cookie)
// to the username that owns it.
type SessionService interface {
	UsernameFromSessionId(sessionId string) (string, error)
}

// UsersService resolves a username to a full user record.
type UsersService interface {
	ByUsername(username string) (*User, error)
}

// NotesService resolves a note id or alias to a note record.
type NotesService interface {
	ByIdOrAlias(idOrAlias string) (*Note, error)
}

// NotesStorage loads the latest persisted revision of a note. Persisting
// edits back is out of scope for this module (spec §1).
type NotesStorage interface {
	GetLatestRevision(note *Note) (*Revision, error)
}

// PermissionsService decides whether a user may read a note.
type PermissionsService interface {
	MayRead(user *User, note *Note) (bool, error)
}
