package cfg

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jessevdk/go-flags"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func parseOptions(t *testing.T, args ...string) *Options {
	t.Helper()

	var options Options
	parser := flags.NewParser(&options, flags.Default&^flags.PrintErrors)
	if _, err := parser.ParseArgs(args); err != nil {
		t.Fatalf("Failed to parse options: %v", err)
	}
	return &options
}

func TestOptionsDefaults(t *testing.T) {
	for _, key := range []string{"DB_PATH", "USER_AGENT", "FETCH_TIMEOUT", "FEED_WORKERS", "ITEM_WORKERS", "TZ", "DEBUG", "VERBOSE", "LOG_FILE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := parseOptions(t).Resolve()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DBPath != "./podcasts.db" {
		t.Errorf("Expected default database path, got %s", cfg.DBPath)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("Expected 30s fetch timeout, got %s", cfg.FetchTimeout)
	}
	if cfg.FeedWorkers != 5 || cfg.ItemWorkers != 4 {
		t.Errorf("Expected 5 feed and 4 item workers, got %d and %d", cfg.FeedWorkers, cfg.ItemWorkers)
	}
	if cfg.Location != time.UTC {
		t.Errorf("Expected UTC location, got %s", cfg.Location)
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("Expected info level, got %s", cfg.LogLevel())
	}
}

func TestOptionsFromFlagsAndEnv(t *testing.T) {
	t.Setenv("FEED_WORKERS", "9")

	cfg, err := parseOptions(t, "--db", "/tmp/x.db", "-d", "--fetch-timeout", "5").Resolve()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("Expected /tmp/x.db, got %s", cfg.DBPath)
	}
	if cfg.FeedWorkers != 9 {
		t.Errorf("Expected 9 feed workers from environment, got %d", cfg.FeedWorkers)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %s", cfg.FetchTimeout)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("Expected debug level, got %s", cfg.LogLevel())
	}
}

func TestOptionsResolveValidation(t *testing.T) {
	valid := Options{DBPath: "x.db", FetchTimeout: 1, FeedWorkers: 1, ItemWorkers: 1, Timezone: "UTC"}

	tests := map[string]func(o *Options){
		"empty db":      func(o *Options) { o.DBPath = " " },
		"zero timeout":  func(o *Options) { o.FetchTimeout = 0 },
		"no workers":    func(o *Options) { o.FeedWorkers = 0 },
		"bad timezone":  func(o *Options) { o.Timezone = "Mars/Olympus" },
		"no item works": func(o *Options) { o.ItemWorkers = -1 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			options := valid
			mutate(&options)
			if _, err := options.Resolve(); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("Expected missing file to be ignored, got %v", err)
	}

	path := filepath.Join(dir, ".env")
	content := "PODCAST_LOG_TEST_NEW=from-file\nPODCAST_LOG_TEST_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PODCAST_LOG_TEST_SET", "from-env")
	t.Setenv("PODCAST_LOG_TEST_NEW", "")
	os.Unsetenv("PODCAST_LOG_TEST_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := os.Getenv("PODCAST_LOG_TEST_NEW"); got != "from-file" {
		t.Errorf("Expected from-file, got %q", got)
	}
	if got := os.Getenv("PODCAST_LOG_TEST_SET"); got != "from-env" {
		t.Errorf("Expected existing variable to win, got %q", got)
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("Feed processed", "feed_id", 3)

	if strings.Contains(stderr.String(), "hidden") || strings.Contains(file.String(), "hidden") {
		t.Error("Expected debug message to be filtered")
	}
	if !strings.Contains(stderr.String(), "feed_id=3") {
		t.Errorf("Expected text output on stderr, got %q", stderr.String())
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON output in file, got %q", file.String())
	}
	if record["msg"] != "Feed processed" {
		t.Errorf("Expected message in JSON record, got %v", record["msg"])
	}
}

func TestSetupLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var stderr bytes.Buffer

	logger, closeLog, err := SetupLogger(&Cfg{LogFile: path, Debug: true}, &stderr)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("debug line")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "debug line") {
		t.Errorf("Expected log file to contain debug line, got %q", data)
	}
	if !strings.Contains(stderr.String(), "debug line") {
		t.Errorf("Expected stderr to contain debug line, got %q", stderr.String())
	}
}
