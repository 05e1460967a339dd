package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"

	"roomcoordinator/internal/crypto"
	"roomcoordinator/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	// rooms.doctor_id references doctors(id), so claimed ids must exist.
	if _, err := db.Exec(`INSERT INTO doctors (id, email, password_digest) VALUES
		('doctor-1', 'doctor-1@example.com', 'x'), ('doctor-2', 'doctor-2@example.com', 'x')`); err != nil {
		t.Fatalf("failed to seed doctors: %v", err)
	}

	mgr := NewManager(db, crypto.NewAESCipher())
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestManager_CreateAndGetRoom(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	room, err := mgr.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.DoctorID != nil {
		t.Error("new room should have a nil doctor id")
	}
	if room.CipherKey == "" {
		t.Error("new room should have a cipher key")
	}

	loaded, err := mgr.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if loaded.CipherKey != room.CipherKey {
		t.Error("loaded room key should match created room key")
	}
}

func TestManager_GetRoom_NotFound(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.GetRoom(context.Background(), "nonexistent"); err == nil {
		t.Fatal("expected error for unknown room")
	} else if types.KindOf(err) != types.KindNotFound {
		t.Errorf("KindOf(err) = %v, want NotFound", types.KindOf(err))
	}
}

func TestManager_ClaimDoctor_ExclusivityInvariant(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	room, _ := mgr.CreateRoom(ctx)

	if err := mgr.ClaimDoctor(ctx, room.ID, "doctor-1"); err != nil {
		t.Fatalf("first claim should succeed: %v", err)
	}

	// Same doctor claiming again is a no-op success.
	if err := mgr.ClaimDoctor(ctx, room.ID, "doctor-1"); err != nil {
		t.Errorf("re-claim by same doctor should succeed: %v", err)
	}

	// A different doctor must be rejected.
	err := mgr.ClaimDoctor(ctx, room.ID, "doctor-2")
	if err == nil {
		t.Fatal("expected error claiming an already-claimed room")
	}
	if types.KindOf(err) != types.KindConflict {
		t.Errorf("KindOf(err) = %v, want Conflict", types.KindOf(err))
	}

	if err := mgr.ReleaseDoctor(ctx, room.ID, "doctor-1"); err != nil {
		t.Fatalf("ReleaseDoctor() error = %v", err)
	}

	// After release, a different doctor can claim.
	if err := mgr.ClaimDoctor(ctx, room.ID, "doctor-2"); err != nil {
		t.Errorf("claim after release should succeed: %v", err)
	}
}

func TestManager_ReleaseDoctor_NotClaimant(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	room, _ := mgr.CreateRoom(ctx)

	if err := mgr.ClaimDoctor(ctx, room.ID, "doctor-1"); err != nil {
		t.Fatalf("ClaimDoctor() error = %v", err)
	}

	err := mgr.ReleaseDoctor(ctx, room.ID, "doctor-2")
	if err == nil {
		t.Fatal("expected error releasing with the wrong doctor id")
	}
}

func TestManager_AppendMessage_AnonymityInvariant(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	room, _ := mgr.CreateRoom(ctx)

	senderID := "doctor-1"
	_, err := mgr.AppendMessage(ctx, room.ID, room.CipherKey, types.Message{
		SenderRole: types.RolePatient,
		SenderID:   &senderID,
		Content:    "hello",
		Language:   "en",
	})
	if err == nil {
		t.Fatal("expected error for patient message with non-nil sender id")
	}
}

func TestManager_AppendAndPage_RoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	room, _ := mgr.CreateRoom(ctx)

	translated := "hola"
	_, err := mgr.AppendMessage(ctx, room.ID, room.CipherKey, types.Message{
		SenderRole:        types.RolePatient,
		Content:           "hello",
		TranslatedContent: &translated,
		Language:          "en",
		TargetLanguage:    strPtr("es"),
	})
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	page, err := mgr.Page(ctx, room.ID, room.CipherKey, 10, 0)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 message, got %d", len(page))
	}
	if page[0].Content != "hello" {
		t.Errorf("Content = %q, want %q", page[0].Content, "hello")
	}
	if page[0].TranslatedContent == nil || *page[0].TranslatedContent != "hola" {
		t.Errorf("TranslatedContent = %v, want hola", page[0].TranslatedContent)
	}
	if page[0].SenderID != nil {
		t.Error("patient message should have nil sender id")
	}
}

func TestManager_Page_BoundaryOffset(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	room, _ := mgr.CreateRoom(ctx)

	for i := 0; i < 3; i++ {
		if _, err := mgr.AppendMessage(ctx, room.ID, room.CipherKey, types.Message{
			SenderRole: types.RolePatient,
			Content:    "msg",
			Language:   "en",
		}); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	page, err := mgr.Page(ctx, room.ID, room.CipherKey, 1, 0)
	if err != nil || len(page) != 1 {
		t.Fatalf("Page(limit=1,offset=0) = %v, %v", page, err)
	}

	empty, err := mgr.Page(ctx, room.ID, room.CipherKey, 10, 3)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Page(offset=3) should be empty, got %d", len(empty))
	}
}

func strPtr(s string) *string { return &s }

// TestManager_HealthCheckReportsDBFailure drives the ping failure through a
// mocked driver rather than killing a real sqlite connection, so the
// assertion is about HealthCheck's error propagation and not about how
// sqlite itself reports a severed connection.
func TestManager_HealthCheckReportsDBFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	pingErr := errors.New("connection reset by peer")
	mock.ExpectPing().WillReturnError(pingErr)

	mgr := NewManager(db, crypto.NewAESCipher())
	t.Cleanup(func() { _ = mgr.Close() })

	if err := mgr.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected HealthCheck to surface the ping failure")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}
