package interfaces

import (
	"context"

	"roomcoordinator/pkg/types"
)

// RoomStore covers C4: room creation, lookup, and the atomic doctor
// claim/release transaction that enforces the exclusivity invariant.
type RoomStore interface {
	CreateRoom(ctx context.Context) (*types.Room, error)
	GetRoom(ctx context.Context, roomID string) (*types.Room, error)

	// ClaimDoctor succeeds iff the room's current doctor is nil or already
	// equals doctorID. Returns ErrAlreadyClaimed otherwise, ErrRoomNotFound
	// if roomID is unknown. Must be atomic under concurrent callers.
	ClaimDoctor(ctx context.Context, roomID, doctorID string) error

	// ReleaseDoctor sets doctor to nil iff the current value equals
	// doctorID. Returns ErrNotClaimant if it does not. Idempotent: a
	// second release by the same doctor after the room is already nil
	// returns ErrNotClaimant, which callers treat as a non-fatal no-op.
	ReleaseDoctor(ctx context.Context, roomID, doctorID string) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// MessageStore covers C3: append-only writes with encryption on the way
// in, decryption on the way out.
type MessageStore interface {
	// AppendMessage enforces the anonymity invariant (patient implies nil
	// sender id) before encrypting and persisting. The returned Message
	// carries plaintext Content/TranslatedContent and the store-assigned
	// ID/Timestamp.
	AppendMessage(ctx context.Context, roomID string, key string, msg types.Message) (*types.Message, error)

	// Page returns up to limit messages for roomID, newest first, skipping
	// offset from the newest end, decrypted under key.
	Page(ctx context.Context, roomID string, key string, limit, offset int) ([]*types.Message, error)
}
