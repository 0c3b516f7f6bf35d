package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/podcast-log/app/cfg"
	"github.com/lysyi3m/podcast-log/app/database"
	"github.com/lysyi3m/podcast-log/app/feed"
	"github.com/lysyi3m/podcast-log/app/tasks"
)

var options cfg.Options

func main() {
	if err := cfg.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	parser := flags.NewParser(&options, flags.Default)
	parser.ShortDescription = "Podcast Log"
	parser.LongDescription = "Collects podcast episodes from RSS feeds and writes recording reports."

	parser.AddCommand("add", "Register a feed", "Fetches the feed once and stores it for later runs.", &addCommand{})
	parser.AddCommand("list", "List registered feeds", "", &listCommand{})
	parser.AddCommand("process", "Collect new episodes", "Runs one ingestion pass over one or all feeds.", &processCommand{})
	parser.AddCommand("report", "Write a recording report", "Writes unrecorded episodes to a JSON file and marks them recorded.", &reportCommand{})
	parser.AddCommand("import", "Register feeds from a YAML catalog", "", &importCommand{})
	parser.AddCommand("override", "Set or clear feed overrides", "Pass '-' as rules to clear them.", &overrideCommand{})
	parser.AddCommand("serve", "Run the scheduler and HTTP API", "", &serveCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

// application holds everything a command needs once the global options are
// resolved.
type application struct {
	cfg         *cfg.Cfg
	logger      *slog.Logger
	db          *database.DB
	feedRepo    *database.FeedRepo
	episodeRepo *database.EpisodeRepo
	ingester    *tasks.Ingester
	source      *feed.Client
}

// withApp resolves configuration, opens the database and runs fn. All
// resources are released when fn returns.
func withApp(fn func(app *application) error) error {
	c, err := options.Resolve()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := cfg.SetupLogger(c, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Debug("Configuration loaded", "db", c.DBPath, "timezone", c.Location.String(), "version", c.Version)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	if dirty {
		logger.Warn("Database schema is dirty", "version", version)
	}
	logger.Debug("Database ready", "schema_version", version)

	source := feed.NewClient(&http.Client{}, feed.NewParser(), c.UserAgent, c.FetchTimeout)
	feedRepo := database.NewFeedRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)

	app := &application{
		cfg:         c,
		logger:      logger,
		db:          db,
		feedRepo:    feedRepo,
		episodeRepo: episodeRepo,
		source:      source,
		ingester:    tasks.NewIngester(source, feedRepo, episodeRepo, c.FeedWorkers, c.ItemWorkers, logger),
	}

	return fn(app)
}

func (app *application) parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := dateparse.ParseIn(value, app.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return &t, nil
}

func (app *application) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.In(app.cfg.Location).Format("2006-01-02 15:04")
}
