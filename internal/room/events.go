package room

import "encoding/json"

// Envelope is the one frame shape every inbound and outbound message
// shares: a string event name plus an opaque payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound payloads (§4.9 of the room coordinator's event contracts).

type JoinRoomPayload struct {
	RoomID   string `json:"room_id"`
	Role     string `json:"role"`
	Language string `json:"language,omitempty"`
	Token    string `json:"token,omitempty"`
}

type SendMessagePayload struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
	IsAudio  bool   `json:"is_audio,omitempty"`
}

type AudioChunkPayload struct {
	Chunk    string `json:"chunk"`
	IsLast   bool   `json:"is_last"`
	Language string `json:"language,omitempty"`
}

type RequestTTSPayload struct {
	Text      string  `json:"text"`
	Language  string  `json:"language,omitempty"`
	MessageID *string `json:"message_id,omitempty"`
}

type UpdateLanguagePayload struct {
	Language string `json:"language"`
}

// Outbound payloads.

type Participants struct {
	Patient bool `json:"patient"`
	Doctor  bool `json:"doctor"`
}

type RoomJoinedPayload struct {
	RoomID       string       `json:"room_id"`
	Role         string       `json:"role"`
	DoctorID     *string      `json:"doctor_id,omitempty"`
	Participants Participants `json:"participants"`
}

type UserJoinedPayload struct {
	Role     string  `json:"role"`
	DoctorID *string `json:"doctor_id,omitempty"`
}

type UserLeftPayload struct {
	Role     string  `json:"role"`
	DoctorID *string `json:"doctor_id,omitempty"`
}

type NewMessagePayload struct {
	ID                 string  `json:"id"`
	Content            string  `json:"content"`
	TranslatedContent  *string `json:"translated_content,omitempty"`
	Language           string  `json:"language"`
	TargetLanguage     *string `json:"target_language,omitempty"`
	SenderRole         string  `json:"sender_role"`
	SenderID           *string `json:"sender_id,omitempty"`
	Timestamp          string  `json:"timestamp"`
	IsAudioOrigin      bool    `json:"is_audio_origin"`
	TranslationErrored bool    `json:"translation_errored,omitempty"`
}

type MessageSentPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

type MessageTranslatedPayload struct {
	ID                string `json:"id"`
	TranslatedContent string `json:"translated_content"`
	TargetLanguage    string `json:"target_language"`
}

type CipherKeyExchangePayload struct {
	CipherKey string `json:"cipher_key"`
}

type CipherKeyInvalidatedPayload struct {
	Reason string `json:"reason"`
}

type AudioTranscribedPayload struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type AudioStreamPayload struct {
	Chunk     string  `json:"chunk"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	IsLast    bool    `json:"is_last"`
	MessageID *string `json:"message_id,omitempty"`
}

type STTErrorPayload struct {
	Message string `json:"message"`
}

type TTSErrorPayload struct {
	MessageID *string `json:"message_id,omitempty"`
	Message   string  `json:"message"`
}

type LanguageUpdatedPayload struct {
	Language string `json:"language"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventAudioChunk     = "audio_chunk"
	EventRequestTTS     = "request_tts"
	EventUpdateLanguage = "update_language"
	EventLeaveRoom      = "leave_room"
	EventDisconnect     = "disconnect"

	EventRoomJoined           = "room_joined"
	EventUserJoined           = "user_joined"
	EventUserLeft             = "user_left"
	EventNewMessage           = "new_message"
	EventMessageSent          = "message_sent"
	EventMessageTranslated    = "message_translated"
	EventCipherKeyExchange    = "cipher_key_exchange"
	EventCipherKeyInvalidated = "cipher_key_invalidated"
	EventAudioTranscribed     = "audio_transcribed"
	EventAudioStream          = "audio_stream"
	EventSTTError             = "stt_error"
	EventTTSError             = "tts_error"
	EventLanguageUpdated      = "language_updated"
	EventError                = "error"
)

const (
	ReasonParticipantLeft         = "participant_left"
	ReasonParticipantDisconnected = "participant_disconnected"
)
