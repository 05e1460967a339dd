package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"roomcoordinator/internal/config"
)

// chdirToModuleRoot makes the on-disk "migrations" path NewApplication
// reads resolve the same way it does when the binary runs from the repo
// root in production.
func chdirToModuleRoot(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(filepath.Join(wd, "..", "..")); err != nil {
		t.Fatalf("failed to chdir to module root: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.HTTP.Port = 18765
	cfg.Auth.TokenSecret = "test-secret"
	return cfg
}

func TestNewApplication_WiresAllComponents(t *testing.T) {
	chdirToModuleRoot(t)

	application, err := NewApplication(testConfig(t))
	if err != nil {
		t.Fatalf("NewApplication() error = %v", err)
	}
	if application.store == nil || application.cache == nil || application.coordinator == nil || application.httpServer == nil {
		t.Fatal("expected every core component to be wired")
	}
	if application.GetAddr() == "" {
		t.Error("expected a non-empty bind address")
	}
}

func TestNewApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = ""

	if _, err := NewApplication(cfg); err == nil {
		t.Fatal("expected an error for a configuration that fails Validate()")
	}
}

func TestApplication_StartThenStop(t *testing.T) {
	chdirToModuleRoot(t)

	application, err := NewApplication(testConfig(t))
	if err != nil {
		t.Fatalf("NewApplication() error = %v", err)
	}

	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
