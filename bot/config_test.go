package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admin_id: 42
relay:
  routing_capacity: 128
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Core.Telegram.AdminID != 42 {
		t.Errorf("admin_id = %d, want 42", cfg.Core.Telegram.AdminID)
	}
	if cfg.Relay.RoutingCapacity != 128 {
		t.Errorf("routing_capacity = %d, want 128", cfg.Relay.RoutingCapacity)
	}
	if cfg.Core.Telegram.RunMode != "longpoll" {
		t.Errorf("run_mode = %q, want default longpoll", cfg.Core.Telegram.RunMode)
	}
}

func TestLoadConfigRequiresOperator(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "admin_id") {
		t.Fatalf("expected admin_id error, got %v", err)
	}
}

func TestLoadConfigAuditNeedsDatabase(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  admin_id: 42
audit:
  enabled: true
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Fatalf("expected database.host error, got %v", err)
	}
}
