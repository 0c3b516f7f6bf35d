package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// Options are the global flags shared by every command. Each one can also
// come from the environment or a .env file.
type Options struct {
	DBPath       string `long:"db" env:"DB_PATH" default:"./podcasts.db" description:"SQLite database file"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"Podcast Log/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`
	FeedWorkers  int    `long:"feed-workers" env:"FEED_WORKERS" default:"5" description:"Feeds processed concurrently"`
	ItemWorkers  int    `long:"item-workers" env:"ITEM_WORKERS" default:"4" description:"Items processed concurrently within one feed"`
	Timezone     string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for dates given on the command line and shown in listings"`
	Debug        bool   `short:"d" long:"debug" env:"DEBUG" description:"Enable debug logging"`
	Verbose      bool   `short:"v" long:"verbose" env:"VERBOSE" description:"Show more detail in listings"`
	LogFile      string `long:"log-file" env:"LOG_FILE" description:"Also write JSON logs to this file"`
}

func (o *Options) Resolve() (*Cfg, error) {
	if strings.TrimSpace(o.DBPath) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if o.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive")
	}
	if o.FeedWorkers < 1 || o.ItemWorkers < 1 {
		return nil, fmt.Errorf("worker counts must be at least 1")
	}

	location, err := time.LoadLocation(cmp.Or(o.Timezone, "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", o.Timezone, err)
	}

	return &Cfg{
		DBPath:       o.DBPath,
		UserAgent:    o.UserAgent,
		FetchTimeout: time.Duration(o.FetchTimeout) * time.Second,
		FeedWorkers:  o.FeedWorkers,
		ItemWorkers:  o.ItemWorkers,
		Debug:        o.Debug,
		Verbose:      o.Verbose,
		LogFile:      o.LogFile,
		Location:     location,
		Version:      GetVersion(),
	}, nil
}

// LoadDotEnv exports variables from path when the file exists. Variables
// already set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
