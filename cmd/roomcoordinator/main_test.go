package main

import (
	"testing"

	"roomcoordinator/internal/app"
	"roomcoordinator/internal/config"
)

func TestApplication_ConfigurationValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}

	cfg.HTTP.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected an invalid port to fail validation")
	}
}

func TestApplication_ConstructorRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1

	application, err := app.NewApplication(cfg)
	if err == nil {
		t.Error("expected NewApplication to reject an invalid configuration")
	}
	if application != nil {
		t.Error("expected NewApplication to return a nil application on failure")
	}
}
