package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"roomcoordinator/internal/gateway"
	"roomcoordinator/internal/offlinequeue"
	"roomcoordinator/internal/registry"
	"roomcoordinator/pkg/interfaces"
	"roomcoordinator/pkg/types"
)

type fakeRoomStore struct {
	mu       sync.Mutex
	room     *types.Room
	released []string
}

func (f *fakeRoomStore) CreateRoom(ctx context.Context) (*types.Room, error) { return f.room, nil }
func (f *fakeRoomStore) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	if f.room == nil || f.room.ID != roomID {
		return nil, interfaces.ErrRoomNotFound
	}
	return f.room, nil
}
func (f *fakeRoomStore) ClaimDoctor(ctx context.Context, roomID, doctorID string) error { return nil }

func (f *fakeRoomStore) ReleaseDoctor(ctx context.Context, roomID, doctorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, doctorID)
	return nil
}

func (f *fakeRoomStore) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeRoomStore) Close() error                          { return nil }

type fakeMessageStore struct {
	mu       sync.Mutex
	nextID   int
	messages []*types.Message
}

func (f *fakeMessageStore) AppendMessage(ctx context.Context, roomID, key string, msg types.Message) (*types.Message, error) {
	if msg.SenderRole == types.RolePatient && msg.SenderID != nil {
		return nil, types.NewError(types.KindInvalidArgument, "patient sender must be anonymous")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.RoomID = roomID
	msg.ID = "msg-" + time.Now().String()
	msg.Timestamp = time.Now()
	f.messages = append(f.messages, &msg)
	return &msg, nil
}

func (f *fakeMessageStore) Page(ctx context.Context, roomID, key string, limit, offset int) ([]*types.Message, error) {
	return f.messages, nil
}

type fakeVerifier struct {
	principal interfaces.Principal
	err       error
}

func (f *fakeVerifier) Verify(token string) (interfaces.Principal, error) {
	return f.principal, f.err
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return "[" + targetLang + "] " + text, nil
}

type fakeCache struct{}

func (fakeCache) Get(ctx context.Context, kind, content, lang string) ([]byte, bool) { return nil, false }
func (fakeCache) Put(ctx context.Context, kind, content, lang string, value []byte, ttl time.Duration) {
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields ...interface{})  {}
func (noopLogger) Warn(msg string, fields ...interface{})  {}
func (noopLogger) Error(msg string, fields ...interface{}) {}

type fakeConn struct {
	mu     sync.Mutex
	id     string
	frames []Envelope
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	env, ok := v.(Envelope)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, env)
	return nil
}
func (f *fakeConn) Close() error { return nil }
func (f *fakeConn) ID() string   { return f.id }
func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.frames))
	for i, e := range f.frames {
		names[i] = e.Event
	}
	return names
}

func newTestCoordinator(t *testing.T, room *types.Room) (*Coordinator, *fakeMessageStore, *fakeRoomStore) {
	t.Helper()
	messages := &fakeMessageStore{}
	rooms := &fakeRoomStore{room: room}
	gw := gateway.New(fakeTranslator{}, nil, nil, fakeCache{}, noopLogger{})
	c := New(rooms, messages, &fakeVerifier{}, gw, registry.New(), offlinequeue.New(), noopLogger{})
	return c, messages, rooms
}

// drain gives the room actor's goroutine a chance to process a just-enqueued
// event before assertions run against its side effects.
func drain() { time.Sleep(20 * time.Millisecond) }

func join(c *Coordinator, socketID string, conn interfaces.Connection, payload JoinRoomPayload) {
	data, _ := json.Marshal(payload)
	c.Connect(socketID, conn)
	c.Dispatch(context.Background(), socketID, Envelope{Event: EventJoinRoom, Data: data})
}

func TestCoordinator_SoloPatientJoinDoesNotReceiveCipherKey(t *testing.T) {
	room := &types.Room{ID: "room1", CipherKey: "deadbeef"}
	c, _, _ := newTestCoordinator(t, room)
	conn := &fakeConn{id: "s1"}

	join(c, "s1", conn, JoinRoomPayload{RoomID: "room1", Role: "patient"})
	drain()

	events := conn.events()
	if len(events) == 0 || events[0] != EventRoomJoined {
		t.Fatalf("expected room_joined first, got %v", events)
	}
	for _, e := range events {
		if e == EventCipherKeyExchange {
			t.Fatalf("solo joiner with no peer should never receive cipher_key_exchange, got %v", events)
		}
	}
}

func TestCoordinator_BothPresentBroadcastsCipherKeyToEveryone(t *testing.T) {
	room := &types.Room{ID: "room1", CipherKey: "deadbeef"}
	c, _, _ := newTestCoordinator(t, room)
	patientConn := &fakeConn{id: "p1"}
	doctorConn := &fakeConn{id: "d1"}

	join(c, "p1", patientConn, JoinRoomPayload{RoomID: "room1", Role: "patient"})
	drain()

	// No peer yet: the patient must not have gotten a key on its own join.
	for _, e := range patientConn.events() {
		if e == EventCipherKeyExchange {
			t.Fatalf("patient should not receive cipher_key_exchange before a doctor joins, got %v", patientConn.events())
		}
	}

	doctorID := "doc-1"
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: doctorID, Kind: "doctor"}}
	room.DoctorID = &doctorID
	join(c, "d1", doctorConn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok"})
	drain()

	if !containsEvent(doctorConn.events(), EventCipherKeyExchange) {
		t.Fatalf("expected joining doctor to receive cipher_key_exchange, got %v", doctorConn.events())
	}
	if !containsEvent(patientConn.events(), EventCipherKeyExchange) {
		t.Fatalf("expected already-present patient to also receive cipher_key_exchange, got %v", patientConn.events())
	}
}

func TestCoordinator_DoctorJoinRequiresMatchingToken(t *testing.T) {
	doctorID := "doc-1"
	room := &types.Room{ID: "room1", CipherKey: "deadbeef", DoctorID: &doctorID}
	c, _, _ := newTestCoordinator(t, room)
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: "doc-1", Kind: "doctor"}}
	conn := &fakeConn{id: "s1"}

	join(c, "s1", conn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok"})
	drain()

	if got := conn.events(); len(got) == 0 || got[0] != EventRoomJoined {
		t.Fatalf("expected successful join, got %v", got)
	}
}

func TestCoordinator_DoctorJoinRejectsMismatchedClaimant(t *testing.T) {
	claimant := "doc-1"
	room := &types.Room{ID: "room1", CipherKey: "deadbeef", DoctorID: &claimant}
	c, _, _ := newTestCoordinator(t, room)
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: "doc-2", Kind: "doctor"}}
	conn := &fakeConn{id: "s1"}

	join(c, "s1", conn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok"})
	drain()

	if got := conn.events(); len(got) != 1 || got[0] != EventError {
		t.Fatalf("expected a single error frame, got %v", got)
	}
}

func TestCoordinator_SendMessageDeliversToPresentPeer(t *testing.T) {
	room := &types.Room{ID: "room1", CipherKey: "deadbeef"}
	c, _, _ := newTestCoordinator(t, room)
	patientConn := &fakeConn{id: "p1"}
	doctorConn := &fakeConn{id: "d1"}

	join(c, "p1", patientConn, JoinRoomPayload{RoomID: "room1", Role: "patient", Language: "en"})
	drain()
	doctorID := "doc-1"
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: doctorID, Kind: "doctor"}}
	room.DoctorID = &doctorID
	join(c, "d1", doctorConn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok", Language: "es"})
	drain()

	data, _ := json.Marshal(SendMessagePayload{Content: "hello", Language: "en"})
	c.Dispatch(context.Background(), "p1", Envelope{Event: EventSendMessage, Data: data})
	drain()

	if !containsEvent(doctorConn.events(), EventNewMessage) {
		t.Fatalf("expected doctor to receive new_message, got %v", doctorConn.events())
	}
}

// TestCoordinator_SendMessagePersistsTranslationBeforeAppend guards against
// translating only for the live peer and losing the translation from the
// persisted record: a later history read must see the same translated
// content the peer was shown.
func TestCoordinator_SendMessagePersistsTranslationBeforeAppend(t *testing.T) {
	room := &types.Room{ID: "room1", CipherKey: "deadbeef"}
	c, messages, _ := newTestCoordinator(t, room)
	patientConn := &fakeConn{id: "p1"}
	doctorConn := &fakeConn{id: "d1"}

	join(c, "p1", patientConn, JoinRoomPayload{RoomID: "room1", Role: "patient", Language: "en"})
	drain()
	doctorID := "doc-1"
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: doctorID, Kind: "doctor"}}
	room.DoctorID = &doctorID
	join(c, "d1", doctorConn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok", Language: "es"})
	drain()

	data, _ := json.Marshal(SendMessagePayload{Content: "hello", Language: "en"})
	c.Dispatch(context.Background(), "p1", Envelope{Event: EventSendMessage, Data: data})
	drain()

	messages.mu.Lock()
	defer messages.mu.Unlock()
	if len(messages.messages) != 1 {
		t.Fatalf("expected exactly one persisted message, got %d", len(messages.messages))
	}
	stored := messages.messages[0]
	if stored.TranslatedContent == nil || *stored.TranslatedContent != "[es] hello" {
		t.Fatalf("expected persisted record to carry the translation, got %+v", stored.TranslatedContent)
	}
	if stored.TargetLanguage == nil || *stored.TargetLanguage != "es" {
		t.Fatalf("expected persisted record to carry the target language, got %+v", stored.TargetLanguage)
	}
}

func TestCoordinator_SendMessageWithNoPeerIsQueued(t *testing.T) {
	room := &types.Room{ID: "room1", CipherKey: "deadbeef"}
	c, messages, _ := newTestCoordinator(t, room)
	conn := &fakeConn{id: "p1"}

	join(c, "p1", conn, JoinRoomPayload{RoomID: "room1", Role: "patient", Language: "en"})
	drain()

	data, _ := json.Marshal(SendMessagePayload{Content: "anyone there?", Language: "en"})
	c.Dispatch(context.Background(), "p1", Envelope{Event: EventSendMessage, Data: data})
	drain()

	messages.mu.Lock()
	count := len(messages.messages)
	messages.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected message to still be persisted, got %d", count)
	}

	doctorConn := &fakeConn{id: "d1"}
	doctorID := "doc-1"
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: doctorID, Kind: "doctor"}}
	room.DoctorID = &doctorID
	join(c, "d1", doctorConn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok"})
	drain()

	if !containsEvent(doctorConn.events(), EventNewMessage) {
		t.Fatalf("expected queued message to be replayed on join, got %v", doctorConn.events())
	}
}

func TestCoordinator_LeaveRoomNotifiesPeerAndRetiresActor(t *testing.T) {
	room := &types.Room{ID: "room1", CipherKey: "deadbeef"}
	c, _, _ := newTestCoordinator(t, room)
	p1 := &fakeConn{id: "p1"}
	p2 := &fakeConn{id: "p2"}

	join(c, "p1", p1, JoinRoomPayload{RoomID: "room1", Role: "patient"})
	drain()
	join(c, "p2", p2, JoinRoomPayload{RoomID: "room1", Role: "patient"})
	drain()

	c.Dispatch(context.Background(), "p1", Envelope{Event: EventLeaveRoom})
	drain()

	if !containsEvent(p2.events(), EventCipherKeyInvalidated) {
		t.Fatalf("expected remaining peer to see cipher_key_invalidated, got %v", p2.events())
	}
	if !containsEvent(p2.events(), EventUserLeft) {
		t.Fatalf("expected remaining peer to see user_left, got %v", p2.events())
	}

	c.Dispatch(context.Background(), "p2", Envelope{Event: EventLeaveRoom})
	drain()

	c.actorsMu.Lock()
	_, exists := c.actors["room1"]
	c.actorsMu.Unlock()
	if exists {
		t.Error("expected room actor to be retired once empty")
	}
}

// TestCoordinator_DoctorDepartureReleasesRoom guards scenario S3: a doctor
// disconnecting must free the room's doctor slot so a second doctor can
// claim it, rather than leaving it permanently held by a socket that no
// longer exists.
func TestCoordinator_DoctorDepartureReleasesRoom(t *testing.T) {
	doctorID := "doc-1"
	room := &types.Room{ID: "room1", CipherKey: "deadbeef", DoctorID: &doctorID}
	c, _, rooms := newTestCoordinator(t, room)
	c.verifier = &fakeVerifier{principal: interfaces.Principal{ID: doctorID, Kind: "doctor"}}
	conn := &fakeConn{id: "d1"}

	join(c, "d1", conn, JoinRoomPayload{RoomID: "room1", Role: "doctor", Token: "tok"})
	drain()

	c.Disconnect("d1")
	drain()

	rooms.mu.Lock()
	defer rooms.mu.Unlock()
	if len(rooms.released) != 1 || rooms.released[0] != doctorID {
		t.Fatalf("expected ReleaseDoctor(%q) to be called once, got %v", doctorID, rooms.released)
	}
}

func containsEvent(events []string, target string) bool {
	for _, e := range events {
		if e == target {
			return true
		}
	}
	return false
}
