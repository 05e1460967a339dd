package types

import "time"

// Role identifies which side of a room a session or message belongs to.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Room binds a symmetric key to at most one claiming doctor.
// DoctorID is nil until claimed and returns to nil on release; there is no
// direct reassignment from one non-nil doctor to another.
type Room struct {
	ID        string    `json:"id" db:"id"`
	DoctorID  *string   `json:"doctor_id,omitempty" db:"doctor_id"`
	CipherKey string    `json:"-" db:"cipher_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is an append-only record. Content/TranslatedContent here are
// always plaintext in memory; stores encrypt on write and decrypt on read
// so callers never handle ciphertext directly.
type Message struct {
	ID                string    `json:"id" db:"id"`
	RoomID            string    `json:"room_id" db:"room_id"`
	SenderRole        Role      `json:"sender_role" db:"sender_role"`
	SenderID          *string   `json:"sender_id,omitempty" db:"sender_id"`
	Content           string    `json:"content" db:"content"`
	TranslatedContent *string   `json:"translated_content,omitempty" db:"translated_content"`
	Language          string    `json:"language" db:"language"`
	TargetLanguage    *string   `json:"target_language,omitempty" db:"target_language"`
	Timestamp         time.Time `json:"timestamp" db:"timestamp"`
	IsAudioOrigin     bool      `json:"is_audio_origin" db:"is_audio_origin"`
	TranslationErrored bool     `json:"translation_errored,omitempty" db:"-"`
}

// Session is transient, per-socket state. It is never persisted; it lives
// only in a Registry (see internal/registry) for the lifetime of a socket.
type Session struct {
	SocketID    string
	RoomID      string
	Role        Role
	DoctorID    *string
	Language    string
	ConnectedAt time.Time
}

// OfflineEntry is a plaintext snapshot retained in memory for a peer who
// was absent when the message was produced.
type OfflineEntry struct {
	Content    string
	SenderRole Role
	SenderID   *string
	Language   string
	Timestamp  time.Time
}

// Doctor is read-only from this module's perspective; accounts are created
// by an external collaborator (registration is out of scope).
type Doctor struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	PasswordDigest  string    `json:"-" db:"password_digest"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
