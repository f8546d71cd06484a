package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfig is a simple struct for testing the generic loader
type testConfig struct {
	Name    string `yaml:"name"`
	Port    int    `yaml:"port"`
	Enabled bool   `yaml:"enabled"`
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig_Success(t *testing.T) {
	content := `name: test-service
port: 8080
enabled: true
`
	cfg, err := LoadConfig[testConfig](writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "test-service" {
		t.Errorf("expected Name 'test-service', got '%s'", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected Port 8080, got %d", cfg.Port)
	}
	if !cfg.Enabled {
		t.Errorf("expected Enabled true, got false")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig[testConfig]("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("expected error to contain 'read config file', got: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	content := `name: [invalid yaml
port: not closed`
	_, err := LoadConfig[testConfig](writeTempConfig(t, content))
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected error to contain 'parse config', got: %v", err)
	}
}

func TestLoadClientConfig_Full(t *testing.T) {
	content := `server:
  host: play.example.com
  port: 30125
player_name: Alice
auth_ticket: deadbeef
protocol_version: 5
`
	cfg, err := LoadClientConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadClientConfig failed: %v", err)
	}

	if cfg.Server.Host != "play.example.com" || cfg.Server.Port != 30125 {
		t.Errorf("server endpoint: got %s", cfg.Server.Address())
	}
	if cfg.PlayerName != "Alice" {
		t.Errorf("player name: got %q", cfg.PlayerName)
	}
	if cfg.ProtocolVersion != 5 {
		t.Errorf("protocol version: got %d", cfg.ProtocolVersion)
	}
	if !bytes.Equal(cfg.DecodedAuthTicket(), []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("decoded ticket: got %x", cfg.DecodedAuthTicket())
	}
}

func TestLoadClientConfig_DefaultPort(t *testing.T) {
	content := `server:
  host: play.example.com
`
	cfg, err := LoadClientConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("LoadClientConfig failed: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if got := cfg.Server.Address(); got != "play.example.com:30120" {
		t.Errorf("address: got %q", got)
	}
}

func TestLoadClientConfig_MissingHost(t *testing.T) {
	content := `player_name: Alice
`
	_, err := LoadClientConfig(writeTempConfig(t, content))
	if err == nil {
		t.Fatal("expected error for missing host, got nil")
	}
	if !strings.Contains(err.Error(), "server host cannot be empty") {
		t.Errorf("expected error about empty host, got: %v", err)
	}
}

func TestLoadClientConfig_BadAuthTicket(t *testing.T) {
	content := `server:
  host: play.example.com
auth_ticket: not-hex!
`
	_, err := LoadClientConfig(writeTempConfig(t, content))
	if err == nil {
		t.Fatal("expected error for malformed ticket, got nil")
	}
	if !strings.Contains(err.Error(), "auth_ticket must be hex encoded") {
		t.Errorf("expected error about hex ticket, got: %v", err)
	}
}

func TestLoadClientConfig_FileNotFound(t *testing.T) {
	_, err := LoadClientConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("expected error to contain 'read config file', got: %v", err)
	}
}

func TestClient_DecodedAuthTicket_Empty(t *testing.T) {
	var cfg Client
	if got := cfg.DecodedAuthTicket(); got != nil {
		t.Errorf("expected nil ticket, got %x", got)
	}
}
