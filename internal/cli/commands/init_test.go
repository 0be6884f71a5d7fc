package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appdeck-dev/appdeck/internal/cli/config"
)

func runInitCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestInitCommand_NewConfig tests creating a brand new config file
func TestInitCommand_NewConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Chdir(tempDir)

	out, err := runInitCmd(t, "https://api.example.com/api/")
	if err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if !strings.Contains(out, "✓ Created ./appdeck.yaml") {
		t.Errorf("unexpected output:\n%s", out)
	}

	cfg, err := config.Load(filepath.Join(tempDir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load created config: %v", err)
	}

	// Trailing slash is trimmed on save
	if cfg.API.BaseURL != "https://api.example.com/api" {
		t.Errorf("expected base URL 'https://api.example.com/api', got '%s'", cfg.API.BaseURL)
	}
	if cfg.Storage.Backend != config.BackendKeyring {
		t.Errorf("expected keyring storage, got '%s'", cfg.Storage.Backend)
	}
}

// TestInitCommand_Defaults tests that the base URL is optional
func TestInitCommand_Defaults(t *testing.T) {
	tempDir := t.TempDir()
	t.Chdir(tempDir)

	if _, err := runInitCmd(t, "--storage", "file"); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	cfg, err := config.Load(filepath.Join(tempDir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.API.BaseURL != config.DefaultAPIBaseURL {
		t.Errorf("expected default base URL, got '%s'", cfg.API.BaseURL)
	}
	if cfg.Storage.Backend != config.BackendFile {
		t.Errorf("expected file storage, got '%s'", cfg.Storage.Backend)
	}
}

// TestInitCommand_ExistingConfig tests that re-running init keeps settings
// that were not passed again
func TestInitCommand_ExistingConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Chdir(tempDir)

	if _, err := runInitCmd(t, "http://localhost:9000/api", "--storage", "file", "--web-url", "http://localhost:3000"); err != nil {
		t.Fatalf("first init failed: %v", err)
	}

	out, err := runInitCmd(t, "http://localhost:9001/api")
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if !strings.Contains(out, "✓ Updated ./appdeck.yaml") {
		t.Errorf("unexpected output:\n%s", out)
	}

	cfg, err := config.Load(filepath.Join(tempDir, config.ConfigFileName))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:9001/api" {
		t.Errorf("expected updated base URL, got '%s'", cfg.API.BaseURL)
	}
	if cfg.Storage.Backend != config.BackendFile {
		t.Errorf("storage backend should be kept, got '%s'", cfg.Storage.Backend)
	}
	if cfg.WebURL != "http://localhost:3000" {
		t.Errorf("web URL should be kept, got '%s'", cfg.WebURL)
	}
}

// TestInitCommand_InvalidURL tests that nothing is written for a bad URL
func TestInitCommand_InvalidURL(t *testing.T) {
	tempDir := t.TempDir()
	t.Chdir(tempDir)

	if _, err := runInitCmd(t, "ftp://example.com"); err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
	if _, err := os.Stat(filepath.Join(tempDir, config.ConfigFileName)); !os.IsNotExist(err) {
		t.Error("appdeck.yaml should not be created")
	}

	if _, err := runInitCmd(t, "--storage", "floppy"); err == nil {
		t.Fatal("expected an error for an unknown storage backend")
	}
}
