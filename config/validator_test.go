package config

import (
	"strings"
	"testing"
)

func TestValidateWithDetails_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateWithDetails(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidateWithDetails_BadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0

	err := ValidateWithDetails(cfg)
	if err == nil {
		t.Fatal("expected validation error for port 0")
	}

	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(details) == 0 {
		t.Fatal("expected at least one error detail")
	}
	if !strings.Contains(details.Error(), "Port") {
		t.Errorf("error should name the port field: %v", details)
	}
}

func TestValidateWithDetails_CollectsMultiple(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Log.Level = "verbose"
	cfg.App.Environment = "qa"

	err := ValidateWithDetails(cfg)
	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(details) < 3 {
		t.Errorf("expected three errors, got %d: %v", len(details), details)
	}
}

func TestConfigErrorMessage(t *testing.T) {
	e := ConfigError{Field: "Config.Server.Port", Message: "must be at least 1", Value: 0}
	msg := e.Error()
	if !strings.Contains(msg, "Config.Server.Port") || !strings.Contains(msg, "must be at least 1") {
		t.Errorf("message = %s", msg)
	}
}

func TestValidateWithDetails_CrossFieldRules(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "badger"
	cfg.Storage.Badger.Path = ""
	cfg.Storage.Redis.Enabled = true
	cfg.Storage.Redis.Address = ""
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = ""

	err := ValidateWithDetails(cfg)
	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	for _, field := range []string{
		"Config.Storage.Badger.Path",
		"Config.Storage.Redis.Address",
		"Config.Tracing.Endpoint",
	} {
		found := false
		for _, d := range details {
			if d.Field == field {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing cross-field error for %s in %v", field, details)
		}
	}
}

func TestValidateWithDetails_TLSEndpointNeedsAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Remote.Drone.TLSEnabled = true
	cfg.Remote.Drone.Address = ""

	err := ValidateWithDetails(cfg)
	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !strings.Contains(details.Error(), "Config.Remote.Drone.Address") {
		t.Errorf("error should name the drone endpoint: %v", details)
	}
}
