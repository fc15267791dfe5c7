package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetState clears package globals between tests. The logging package is
// global by design (one process, one data dir), so tests have to reset it.
func resetState() {
	CloseAll()
	CloseAudit()
	logsDir = ""
	dataDir = ""
	config = loggingConfig{}
	configLoaded = false
	logLevel = LevelInfo
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestInitializeNoConfigIsSilent(t *testing.T) {
	defer resetState()

	dir := t.TempDir()
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsDebugMode() {
		t.Error("Expected debug mode off without config")
	}

	// No logs dir should be created in production mode
	if _, err := os.Stat(filepath.Join(dir, "logs")); !os.IsNotExist(err) {
		t.Error("Expected no logs directory in production mode")
	}

	// Logging must be a no-op, not a panic
	Get(CategoryCart).Info("dropped")
}

func TestInitializeDebugModeWritesFiles(t *testing.T) {
	defer resetState()

	dir := t.TempDir()
	writeConfig(t, dir, `{"logging": {"debug_mode": true, "level": "debug"}}`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if !IsDebugMode() {
		t.Fatal("Expected debug mode on")
	}

	Get(CategoryCart).Info("added product p1")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}

	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "cart") {
			data, _ := os.ReadFile(filepath.Join(dir, "logs", e.Name()))
			if strings.Contains(string(data), "added product p1") {
				found = true
			}
		}
	}
	if !found {
		t.Error("Expected cart log entry on disk")
	}
}

func TestCategoryFilter(t *testing.T) {
	defer resetState()

	dir := t.TempDir()
	writeConfig(t, dir, `{"logging": {"debug_mode": true, "categories": {"cart": false, "store": true}}}`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryCart) {
		t.Error("Expected cart category disabled")
	}
	if !IsCategoryEnabled(CategoryStore) {
		t.Error("Expected store category enabled")
	}
	// Unlisted categories default to enabled
	if !IsCategoryEnabled(CategoryCheckout) {
		t.Error("Expected unlisted category enabled by default")
	}
}

func TestReloadConfig(t *testing.T) {
	defer resetState()

	dir := t.TempDir()
	writeConfig(t, dir, `{"logging": {"debug_mode": false}}`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("Expected debug mode off")
	}

	writeConfig(t, dir, `{"logging": {"debug_mode": true}}`)
	if err := ReloadConfig(); err != nil {
		t.Fatalf("ReloadConfig failed: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode on after reload")
	}
}

func TestAuditLog(t *testing.T) {
	defer resetState()

	dir := t.TempDir()
	writeConfig(t, dir, `{"logging": {"debug_mode": true}}`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit failed: %v", err)
	}

	AuditSuccess(AuditOrderPlaced, "user-1", "order-9", "2 lines")
	AuditFailure(AuditCartMerge, "user-1", "guest-token", os.ErrNotExist)
	CloseAudit()

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}

	var content string
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			data, _ := os.ReadFile(filepath.Join(dir, "logs", e.Name()))
			content = string(data)
		}
	}

	if !strings.Contains(content, "order_placed") {
		t.Error("Expected order_placed audit entry")
	}
	if !strings.Contains(content, "cart_merge") {
		t.Error("Expected cart_merge audit entry")
	}
}
