package room

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"roomcoordinator/pkg/interfaces"
	"roomcoordinator/pkg/types"
)

func unmarshalPayload(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func marshalPayload(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// handleJoinRoom is §4.9.1: validate role, verify a doctor's bearer token,
// register the session, announce presence, and replay anything queued while
// the joining side was absent.
func (c *Coordinator) handleJoinRoom(ctx context.Context, socketID string, conn interfaces.Connection, payload JoinRoomPayload) {
	roomDetails, err := c.rooms.GetRoom(ctx, payload.RoomID)
	if err != nil {
		c.sendError(conn, "room not found")
		return
	}

	var role types.Role
	var doctorID *string
	switch payload.Role {
	case "patient":
		role = types.RolePatient
	case "doctor":
		role = types.RoleDoctor
		if payload.Token == "" {
			c.sendError(conn, "doctor join requires a bearer token")
			return
		}
		principal, err := c.verifier.Verify(payload.Token)
		if err != nil {
			c.sendError(conn, "invalid bearer token")
			return
		}
		if roomDetails.DoctorID != nil && *roomDetails.DoctorID != principal.ID {
			c.sendError(conn, "Room already has a doctor assigned")
			return
		}
		doctorID = &principal.ID
	default:
		c.sendError(conn, "role must be patient or doctor")
		return
	}

	// FUNCTIONAL DISCOVERY: a doctor reconnecting on a new socket without
	// first leaving the old one gets a second session beside the old one
	// until the old socket departs — Registry.Put only replaces an entry
	// with the same socket id.
	session := &types.Session{
		SocketID:    socketID,
		RoomID:      payload.RoomID,
		Role:        role,
		DoctorID:    doctorID,
		Language:    payload.Language,
		ConnectedAt: time.Now(),
	}
	c.registry.Put(session)

	c.send(conn, EventRoomJoined, RoomJoinedPayload{
		RoomID:   payload.RoomID,
		Role:     payload.Role,
		DoctorID: roomDetails.DoctorID,
		Participants: Participants{
			Patient: c.hasRole(payload.RoomID, types.RolePatient),
			Doctor:  c.hasRole(payload.RoomID, types.RoleDoctor),
		},
	})

	c.broadcast(payload.RoomID, socketID, EventUserJoined, UserJoinedPayload{
		Role:     payload.Role,
		DoctorID: doctorID,
	})

	for _, entry := range c.queue.Drain(payload.RoomID) {
		c.send(conn, EventNewMessage, NewMessagePayload{
			ID:            "", // offline entries were never persisted with an id of their own.
			Content:       entry.Content,
			Language:      entry.Language,
			SenderRole:    string(entry.SenderRole),
			SenderID:      entry.SenderID,
			Timestamp:     timestamp(entry.Timestamp),
			IsAudioOrigin: false,
		})
	}

	// The key is handed out only once both roles are simultaneously present,
	// and then to everyone in the room, not just whoever triggered the
	// transition.
	if c.registry.BothPresent(payload.RoomID) {
		c.broadcast(payload.RoomID, "", EventCipherKeyExchange, CipherKeyExchangePayload{CipherKey: roomDetails.CipherKey})
	}
}

func (c *Coordinator) hasRole(roomID string, role types.Role) bool {
	for _, s := range c.registry.Room(roomID) {
		if s.Role == role {
			return true
		}
	}
	return false
}

// handleSendMessage is §4.9.2: reject empty content, translate for whichever
// peer is present, persist under the room's key, then deliver — queueing
// instead of delivering if no peer is there to receive it.
func (c *Coordinator) handleSendMessage(ctx context.Context, socketID string, conn interfaces.Connection, payload SendMessagePayload) {
	session := c.registry.Get(socketID)
	if session == nil {
		c.sendError(conn, "no active room session")
		return
	}
	if !types.IsNonEmptyContent(payload.Content) {
		c.sendError(conn, "message content must not be empty")
		return
	}

	roomDetails, err := c.rooms.GetRoom(ctx, session.RoomID)
	if err != nil {
		c.sendError(conn, "room not found")
		return
	}

	language := payload.Language
	if language == "" {
		language = session.Language
	}

	// Translate before persisting: the record is the source of truth for
	// the history-read endpoint, so it carries the translation a present
	// peer was shown. A failed translation is stored as null.
	peer := c.peerOf(session)
	var translated, targetLanguage *string
	var errored bool
	if peer != nil {
		translated, errored = c.translateFor(ctx, payload.Content, language, peer)
		targetLanguage = strPtr(peer.Language)
	}
	persistedTranslation := translated
	if errored {
		persistedTranslation = nil
	}

	stored, err := c.messages.AppendMessage(ctx, session.RoomID, roomDetails.CipherKey, types.Message{
		SenderRole:        session.Role,
		SenderID:          session.DoctorID,
		Content:           payload.Content,
		TranslatedContent: persistedTranslation,
		Language:          language,
		TargetLanguage:    targetLanguage,
		IsAudioOrigin:     payload.IsAudio,
	})
	if err != nil {
		c.sendError(conn, "message could not be saved")
		return
	}

	c.send(conn, EventMessageSent, MessageSentPayload{ID: stored.ID, Timestamp: timestamp(stored.Timestamp)})

	if peer == nil {
		c.queue.Enqueue(session.RoomID, types.OfflineEntry{
			Content:    stored.Content,
			SenderRole: stored.SenderRole,
			SenderID:   stored.SenderID,
			Language:   stored.Language,
			Timestamp:  stored.Timestamp,
		})
		return
	}

	if peerConn := c.connFor(peer.SocketID); peerConn != nil {
		c.send(peerConn, EventNewMessage, NewMessagePayload{
			ID:                 stored.ID,
			Content:            stored.Content,
			TranslatedContent:  translated,
			Language:           stored.Language,
			TargetLanguage:     stored.TargetLanguage,
			SenderRole:         string(stored.SenderRole),
			SenderID:           stored.SenderID,
			Timestamp:          timestamp(stored.Timestamp),
			IsAudioOrigin:      stored.IsAudioOrigin,
			TranslationErrored: errored,
		})
	}
	if translated != nil && !errored {
		c.send(conn, EventMessageTranslated, MessageTranslatedPayload{
			ID:                stored.ID,
			TranslatedContent: *translated,
			TargetLanguage:    peer.Language,
		})
	}
}

// translateFor returns nil if peer's language already matches the
// message's, so callers can distinguish "no translation needed" from "".
func (c *Coordinator) translateFor(ctx context.Context, content, language string, peer *types.Session) (*string, bool) {
	if peer.Language == "" || peer.Language == language {
		return nil, false
	}
	translated, errored := c.gateway.Translate(ctx, content, language, peer.Language)
	return &translated, errored
}

func (c *Coordinator) peerOf(session *types.Session) *types.Session {
	for _, s := range c.registry.Room(session.RoomID) {
		if s.SocketID != session.SocketID {
			return s
		}
	}
	return nil
}

// handleAudioChunk is §4.9.3: accumulate raw audio for one socket until
// is_last, then transcribe and replay the transcript through the same path
// as a typed send_message.
func (c *Coordinator) handleAudioChunk(ctx context.Context, socketID string, conn interfaces.Connection, payload AudioChunkPayload) {
	decoded, err := base64.StdEncoding.DecodeString(payload.Chunk)
	if err != nil {
		c.audioMu.Lock()
		delete(c.audioBuf, socketID)
		c.audioMu.Unlock()
		c.sendError(conn, "malformed audio chunk")
		return
	}

	c.audioMu.Lock()
	c.audioBuf[socketID] = append(c.audioBuf[socketID], decoded...)
	if !payload.IsLast {
		c.audioMu.Unlock()
		return
	}
	audio := c.audioBuf[socketID]
	delete(c.audioBuf, socketID)
	c.audioMu.Unlock()

	session := c.registry.Get(socketID)
	if session == nil {
		return
	}
	lang := payload.Language
	if lang == "" {
		lang = session.Language
	}

	text, ok := c.gateway.Transcribe(ctx, audio, lang)
	if !ok {
		c.send(conn, EventSTTError, STTErrorPayload{Message: "speech could not be transcribed"})
		return
	}

	c.send(conn, EventAudioTranscribed, AudioTranscribedPayload{Text: text, Language: lang})
	c.handleSendMessage(ctx, socketID, conn, SendMessagePayload{Content: text, Language: lang, IsAudio: true})
}

// handleRequestTTS is §4.9.4: synthesize text in the caller's chosen
// language and stream it back in fixed-size chunks to the requester only.
func (c *Coordinator) handleRequestTTS(ctx context.Context, socketID string, conn interfaces.Connection, payload RequestTTSPayload) {
	session := c.registry.Get(socketID)
	if session == nil {
		return
	}
	if !types.IsNonEmptyContent(payload.Text) {
		c.sendError(conn, "text to synthesize must not be empty")
		return
	}
	lang := payload.Language
	if lang == "" {
		lang = session.Language
	}

	audio, ok := c.gateway.Synthesize(ctx, payload.Text, lang)
	if !ok {
		c.send(conn, EventTTSError, TTSErrorPayload{MessageID: payload.MessageID, Message: "speech could not be synthesized"})
		return
	}

	const chunkSize = 16 * 1024
	const framePacing = 10 * time.Millisecond
	total := (len(audio) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		c.send(conn, EventAudioStream, AudioStreamPayload{
			Chunk:     base64.StdEncoding.EncodeToString(audio[start:end]),
			Index:     i,
			Total:     total,
			IsLast:    i == total-1,
			MessageID: payload.MessageID,
		})
		// The deliberate suspension point in the send path: pace frames so a
		// slow receiver's buffered writer doesn't back up all at once.
		if i < total-1 {
			time.Sleep(framePacing)
		}
	}
}

// handleUpdateLanguage is §4.9.5: a session may change its preferred
// language at any time; it takes effect for the next message either side
// sends.
func (c *Coordinator) handleUpdateLanguage(socketID string, conn interfaces.Connection, payload UpdateLanguagePayload) {
	session := c.registry.Get(socketID)
	if session == nil {
		return
	}
	session.Language = payload.Language
	c.registry.Put(session)
	c.send(conn, EventLanguageUpdated, LanguageUpdatedPayload{Language: payload.Language})
}

// handleDeparture is shared by explicit leave_room and implicit disconnect:
// warn the remaining peer its copy of the key is stale, release the doctor
// slot if the leaver held it, then remove the session and retire the room
// actor if that was the last member. Leave and disconnect are not
// cancellable, so this runs against a background context rather than the
// (possibly already-closing) socket's own.
func (c *Coordinator) handleDeparture(socketID, reason string) {
	session := c.registry.Get(socketID)
	if session == nil {
		return
	}

	c.broadcast(session.RoomID, socketID, EventCipherKeyInvalidated, CipherKeyInvalidatedPayload{Reason: reason})
	c.broadcast(session.RoomID, socketID, EventUserLeft, UserLeftPayload{
		Role:     string(session.Role),
		DoctorID: session.DoctorID,
	})

	if session.Role == types.RoleDoctor && session.DoctorID != nil {
		if err := c.rooms.ReleaseDoctor(context.Background(), session.RoomID, *session.DoctorID); err != nil {
			c.logger.Warn("release doctor failed", "room_id", session.RoomID, "error", err)
		}
	}

	c.registry.Remove(socketID)
	c.dropConn(socketID)
	c.retireActorIfEmpty(session.RoomID)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
