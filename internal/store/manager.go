// Package store implements C3 (message store) and C4 (room store) behind
// one single-writer SQLite manager, the way the source's database.Manager
// combined session and message persistence in one component.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"roomcoordinator/pkg/interfaces"
	"roomcoordinator/pkg/types"
)

const (
	writeChannelSize = 100
	writeTimeout     = 30 * time.Second
	retryDelay       = 5 * time.Second
)

// writeOperation is one queued mutation. execute runs against the sole
// writer connection; result carries the outcome back to the caller that
// queued it.
type writeOperation struct {
	execute func(*sql.DB) error
	result  chan error
}

// Manager is a single SQLite-backed store implementing both RoomStore and
// MessageStore. All writes funnel through one goroutine (writeLoop) so
// SQLite's single-writer constraint never surfaces as a caller-visible
// "database is locked" error; reads bypass the queue since WAL mode lets
// them run concurrently with the writer.
type Manager struct {
	db           *sql.DB
	cipher       interfaces.Cipher
	writeChannel chan writeOperation
	stopChannel  chan struct{}
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewManager(db *sql.DB, cipher interfaces.Cipher) *Manager {
	m := &Manager{
		db:           db,
		cipher:       cipher,
		writeChannel: make(chan writeOperation, writeChannelSize),
		stopChannel:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.writeLoop()
	return m
}

// writeLoop is the sole writer goroutine. A failed write is retried exactly
// once after a fixed delay before the caller is told it failed.
func (m *Manager) writeLoop() {
	defer m.wg.Done()
	for {
		select {
		case op := <-m.writeChannel:
			err := op.execute(m.db)
			if err != nil {
				time.Sleep(retryDelay)
				err = op.execute(m.db)
			}
			op.result <- err
		case <-m.stopChannel:
			return
		}
	}
}

func (m *Manager) executeWrite(ctx context.Context, fn func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return types.NewError(types.KindInternal, "store is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)
	op := writeOperation{execute: fn, result: result}

	select {
	case m.writeChannel <- op:
	case <-ctx.Done():
		return ctx.Err()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	select {
	case err := <-result:
		return err
	case <-timeoutCtx.Done():
		return types.NewError(types.KindInternal, "write operation timed out")
	}
}

func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopChannel)
	m.wg.Wait()
	return m.db.Close()
}

// --- RoomStore ---

func (m *Manager) CreateRoom(ctx context.Context) (*types.Room, error) {
	key, err := m.cipher.NewKey()
	if err != nil {
		return nil, err
	}

	room := &types.Room{
		ID:        uuid.NewString(),
		CipherKey: key,
	}

	err = m.executeWrite(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `
			INSERT INTO rooms (id, doctor_id, cipher_key)
			VALUES (?, NULL, ?)
			RETURNING created_at, updated_at
		`, room.ID, room.CipherKey).Scan(&room.CreatedAt, &room.UpdatedAt)
	})
	if err != nil {
		return nil, types.WrapError(types.KindInternal, "failed to create room", err)
	}
	return room, nil
}

func (m *Manager) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	room := &types.Room{ID: roomID}
	var doctorID sql.NullString

	err := m.db.QueryRowContext(ctx, `
		SELECT doctor_id, cipher_key, created_at, updated_at FROM rooms WHERE id = ?
	`, roomID).Scan(&doctorID, &room.CipherKey, &room.CreatedAt, &room.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.WrapError(types.KindNotFound, "room not found", interfaces.ErrRoomNotFound)
	}
	if err != nil {
		return nil, types.WrapError(types.KindInternal, "failed to load room", err)
	}
	if doctorID.Valid {
		room.DoctorID = &doctorID.String
	}
	return room, nil
}

// ClaimDoctor is the atomic transaction the exclusivity invariant depends
// on: the select-then-conditional-update happens inside one transaction on
// the sole writer connection, so concurrent claims serialize through the
// write queue rather than racing on the row.
func (m *Manager) ClaimDoctor(ctx context.Context, roomID, doctorID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var current sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT doctor_id FROM rooms WHERE id = ?`, roomID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return types.WrapError(types.KindNotFound, "room not found", interfaces.ErrRoomNotFound)
		}
		if err != nil {
			return err
		}
		if current.Valid && current.String != doctorID {
			return types.WrapError(types.KindConflict, "room already has a doctor assigned", interfaces.ErrAlreadyClaimed)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE rooms SET doctor_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, doctorID, roomID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// ReleaseDoctor is idempotent in the sense the invariant requires: a second
// release after the room is already nil returns ErrNotClaimant, which
// callers (the coordinator's leave/disconnect path) treat as a non-fatal
// no-op rather than surfacing an error to a peer.
func (m *Manager) ReleaseDoctor(ctx context.Context, roomID, doctorID string) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var current sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT doctor_id FROM rooms WHERE id = ?`, roomID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return types.WrapError(types.KindNotFound, "room not found", interfaces.ErrRoomNotFound)
		}
		if err != nil {
			return err
		}
		if !current.Valid || current.String != doctorID {
			return types.WrapError(types.KindConflict, "caller is not the current claimant", interfaces.ErrNotClaimant)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE rooms SET doctor_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, roomID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// --- MessageStore ---

func (m *Manager) AppendMessage(ctx context.Context, roomID string, key string, msg types.Message) (*types.Message, error) {
	if msg.SenderRole == types.RolePatient && msg.SenderID != nil {
		return nil, types.NewError(types.KindInvalidArgument, "patient messages must not carry a sender id")
	}
	if msg.SenderRole == types.RoleDoctor && msg.SenderID == nil {
		return nil, types.NewError(types.KindInvalidArgument, "doctor messages must carry a sender id")
	}

	encryptedContent, err := m.cipher.Encrypt(msg.Content, key)
	if err != nil {
		return nil, err
	}

	var encryptedTranslated sql.NullString
	if msg.TranslatedContent != nil {
		ct, err := m.cipher.Encrypt(*msg.TranslatedContent, key)
		if err != nil {
			return nil, err
		}
		encryptedTranslated = sql.NullString{String: ct, Valid: true}
	}

	msg.ID = uuid.NewString()
	msg.RoomID = roomID

	var senderID sql.NullString
	if msg.SenderID != nil {
		senderID = sql.NullString{String: *msg.SenderID, Valid: true}
	}
	var targetLang sql.NullString
	if msg.TargetLanguage != nil {
		targetLang = sql.NullString{String: *msg.TargetLanguage, Valid: true}
	}

	err = m.executeWrite(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `
			INSERT INTO messages (id, room_id, sender_role, sender_id, content, translated_content, language, target_language, is_audio_origin)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING timestamp
		`, msg.ID, roomID, string(msg.SenderRole), senderID, encryptedContent, encryptedTranslated, msg.Language, targetLang, msg.IsAudioOrigin).Scan(&msg.Timestamp)
	})
	if err != nil {
		return nil, types.WrapError(types.KindInternal, "failed to persist message", err)
	}

	return &msg, nil
}

func (m *Manager) Page(ctx context.Context, roomID string, key string, limit, offset int) ([]*types.Message, error) {
	if err := types.ValidatePagination(limit, offset); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, sender_role, sender_id, content, translated_content, language, target_language, timestamp, is_audio_origin
		FROM messages
		WHERE room_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, types.WrapError(types.KindInternal, "failed to query messages", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message
	for rows.Next() {
		var (
			msg               types.Message
			senderID          sql.NullString
			encryptedContent  string
			encTranslated     sql.NullString
			targetLang        sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.SenderRole, &senderID, &encryptedContent, &encTranslated, &msg.Language, &targetLang, &msg.Timestamp, &msg.IsAudioOrigin); err != nil {
			return nil, types.WrapError(types.KindInternal, "failed to scan message row", err)
		}
		msg.RoomID = roomID
		if senderID.Valid {
			msg.SenderID = &senderID.String
		}
		if targetLang.Valid {
			msg.TargetLanguage = &targetLang.String
		}

		plaintext, err := m.cipher.Decrypt(encryptedContent, key)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		msg.Content = plaintext

		if encTranslated.Valid {
			translated, err := m.cipher.Decrypt(encTranslated.String, key)
			if err != nil {
				return nil, fmt.Errorf("message %s translation: %w", msg.ID, err)
			}
			msg.TranslatedContent = &translated
		}

		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}
