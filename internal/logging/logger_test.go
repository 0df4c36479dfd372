package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	logsDir = ""
	opts = Options{}
	level = parseLevel("")
	t.Cleanup(func() {
		CloseAll()
		logsDir = ""
		opts = Options{}
	})
}

// TestAllCategoriesLog tests that all categories create log files when debug mode is on
func TestAllCategoriesLog(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategorySession,
		CategoryAPI,
		CategoryTools,
		CategoryStore,
		CategoryRealtime,
		CategoryAutosave,
		CategorySearch,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	Session("Convenience session log")
	API("Convenience api log")
	Tools("Convenience tools log")
	Store("Convenience store log")
	Realtime("Convenience realtime log")
	Autosave("Convenience autosave log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".claridoc", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if !strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				continue
			}
			found = true
			content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
			if err != nil {
				t.Errorf("Failed to read log file for %s: %v", cat, err)
				break
			}
			if !strings.Contains(string(content), "Test info message for "+string(cat)) {
				t.Errorf("Log file for %s is missing the info message", cat)
			}
			break
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug mode is off
func TestDebugModeDisabled(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: false, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}
	if IsCategoryEnabled(CategoryBoot) {
		t.Error("Categories should be disabled when debug_mode=false")
	}

	Boot("This should NOT be logged")
	Get(CategoryStore).Error("This should NOT be logged")
	CloseAll()

	if _, err := os.Stat(filepath.Join(tempDir, ".claridoc", "logs")); !os.IsNotExist(err) {
		t.Errorf("Logs directory should not exist in production mode, stat err=%v", err)
	}
}

// TestCategoryToggle tests individual category enable/disable
func TestCategoryToggle(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	err := Initialize(tempDir, Options{
		DebugMode:  true,
		Level:      "debug",
		JSONFormat: true,
		Categories: map[string]bool{"boot": true, "api": true, "store": false},
	})
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	if IsCategoryEnabled(CategoryStore) {
		t.Error("store should be disabled")
	}
	if !IsCategoryEnabled(CategoryRealtime) {
		t.Error("realtime (not in config) should default to enabled")
	}

	API("This SHOULD be logged")
	Store("This should NOT be logged")
	Realtime("This SHOULD be logged (default enabled)")
	CloseAll()

	entries, _ := os.ReadDir(filepath.Join(tempDir, ".claridoc", "logs"))
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	joined := strings.Join(names, ",")

	if !strings.Contains(joined, "api") {
		t.Error("Expected api log file")
	}
	if !strings.Contains(joined, "realtime") {
		t.Error("Expected realtime log file")
	}
	if strings.Contains(joined, "store") {
		t.Error("Should NOT have store log file (disabled)")
	}
}

func TestLevelFiltering(t *testing.T) {
	resetState(t)
	tempDir := t.TempDir()

	if err := Initialize(tempDir, Options{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	Get(CategoryTools).Debug("hidden debug")
	Get(CategoryTools).Warn("visible warning")
	CloseAll()

	matches, _ := filepath.Glob(filepath.Join(tempDir, ".claridoc", "logs", "*_tools.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one tools log, got %v", matches)
	}
	data, _ := os.ReadFile(matches[0])
	if strings.Contains(string(data), "hidden debug") {
		t.Error("debug line should be filtered at warn level")
	}
	if !strings.Contains(string(data), "visible warning") {
		t.Error("warn line should be written")
	}
}

// TestTimerLogging tests the timing helper
func TestTimerLogging(t *testing.T) {
	resetState(t)
	if err := Initialize(t.TempDir(), Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	timer := StartTimer(CategoryStore, "TestOperation")
	time.Sleep(time.Millisecond)
	if elapsed := timer.Stop(); elapsed <= 0 {
		t.Error("Timer should have recorded non-zero duration")
	}
}
