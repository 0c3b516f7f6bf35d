package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lysyi3m/podcast-log/app/api"
	"github.com/lysyi3m/podcast-log/app/feed"
	"github.com/lysyi3m/podcast-log/app/report"
	"github.com/lysyi3m/podcast-log/app/tasks"
)

type addCommand struct {
	Topic        string `long:"topic" description:"Subject recorded with every episode of the feed"`
	LookbackDays int    `long:"lookback-days" default:"14" description:"Only collect episodes published this many days before registration"`
	Args         struct {
		URL string `positional-arg-name:"url"`
	} `positional-args:"yes" required:"yes"`
}

func (c *addCommand) Execute(args []string) error {
	return withApp(func(app *application) error {
		task := tasks.NewRegisterFeedTask(tasks.Registration{
			Link:         c.Args.URL,
			Topic:        c.Topic,
			LookbackDays: c.LookbackDays,
		}, app.source, app.feedRepo, app.logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		task.Start()
		if err := task.Execute(ctx); err != nil {
			return err
		}

		fmt.Printf("Registered feed %d: %s\n", task.FeedID, task.Registration.Link)
		return nil
	})
}

type listCommand struct{}

func (c *listCommand) Execute(args []string) error {
	return withApp(func(app *application) error {
		feeds, err := app.feedRepo.GetAllFeeds(context.Background())
		if err != nil {
			return err
		}
		if len(feeds) == 0 {
			fmt.Println("No feeds registered")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		if app.cfg.Verbose {
			fmt.Fprintln(w, "ID\tTITLE\tTOPIC\tLINK\tLAST CHECK\tEARLIEST\tOVERRIDES")
		} else {
			fmt.Fprintln(w, "ID\tTITLE\tLINK\tLAST CHECK")
		}

		for _, f := range feeds {
			if app.cfg.Verbose {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.Title, f.Topic, f.Link,
					app.formatTime(f.LastCheck), app.formatTime(&f.Earliest), f.DataOverride)
			} else {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.ID, f.Title, f.Link, app.formatTime(f.LastCheck))
			}
		}

		return w.Flush()
	})
}

type processCommand struct {
	Feed    int64  `long:"feed" description:"Only process the feed with this ID"`
	Max     int    `long:"max" description:"Consider at most this many recent items per feed"`
	Since   string `long:"since" description:"Also include episodes published after this date"`
	Timeout int    `long:"timeout" description:"Abort the run after this many seconds"`
}

func (c *processCommand) Execute(args []string) error {
	return withApp(func(app *application) error {
		since, err := app.parseDate(c.Since)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(c.Timeout)*time.Second)
			defer cancel()
		}

		result, err := app.ingester.RunAll(ctx, c.Feed, tasks.RunOptions{MaxItems: c.Max, Since: since})
		if err != nil {
			return err
		}

		for _, r := range result.Feeds {
			status := "ok"
			if r.Err != nil {
				status = r.Err.Error()
			}
			fmt.Printf("%-40s considered=%d new=%d skipped=%d %s\n", r.Title, r.Total, r.New, r.Skipped, status)
		}
		fmt.Printf("New episodes: %d\n", result.NewEpisodes)

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}
		return nil
	})
}

type reportCommand struct {
	Feed int64  `long:"feed" description:"Only report episodes of the feed with this ID"`
	From string `long:"from" description:"Earliest publication date"`
	To   string `long:"to" description:"Latest publication date"`
	Full bool   `long:"full" description:"Include episodes already recorded"`
	Args struct {
		File string `positional-arg-name:"file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *reportCommand) Execute(args []string) error {
	return withApp(func(app *application) error {
		from, err := app.parseDate(c.From)
		if err != nil {
			return err
		}
		to, err := app.parseDate(c.To)
		if err != nil {
			return err
		}

		options := report.Options{From: from, To: to, Full: c.Full}
		if c.Feed != 0 {
			options.FeedID = &c.Feed
		}

		reporter := report.NewReporter(app.episodeRepo, report.NewGenerator(), app.logger)
		summary, err := reporter.Write(context.Background(), c.Args.File, options)
		if err != nil {
			return err
		}

		if summary.Episodes == 0 {
			fmt.Println("No matching episodes")
			return nil
		}

		hours, minutes := report.SplitDuration(summary.Duration)
		fmt.Printf("Wrote %d episodes (%dh %dm) to %s\n", summary.Episodes, hours, minutes, summary.Path)
		return nil
	})
}

type importCommand struct {
	Args struct {
		File string `positional-arg-name:"file.yml"`
	} `positional-args:"yes" required:"yes"`
}

func (c *importCommand) Execute(args []string) error {
	return withApp(func(app *application) error {
		catalog, err := feed.LoadCatalog(c.Args.File)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var errs []error
		created, updated := 0, 0
		for _, entry := range catalog.Feeds {
			overrides, err := entry.OverrideJSON()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", entry.URL, err))
				continue
			}

			task := tasks.NewRegisterFeedTask(tasks.Registration{
				Link:         entry.URL,
				Topic:        entry.Topic,
				LookbackDays: entry.Lookback(),
				Overrides:    overrides,
				Update:       true,
			}, app.source, app.feedRepo, app.logger)

			task.Start()
			if err := task.Execute(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", entry.URL, err))
				continue
			}

			if task.Created {
				created++
			} else {
				updated++
			}
		}

		fmt.Printf("Imported %d feeds: %d registered, %d updated, %d failed\n",
			len(catalog.Feeds), created, updated, len(errs))
		return errors.Join(errs...)
	})
}

type overrideCommand struct {
	Args struct {
		FeedID string `positional-arg-name:"feedID"`
		Rules  string `positional-arg-name:"json"`
	} `positional-args:"yes" required:"yes"`
}

func (c *overrideCommand) Execute(args []string) error {
	feedID, err := strconv.ParseInt(c.Args.FeedID, 10, 64)
	if err != nil || feedID <= 0 {
		return fmt.Errorf("invalid feed ID %q", c.Args.FeedID)
	}

	rules := c.Args.Rules
	if rules == "-" {
		rules = ""
	} else if _, err := feed.ParseOverrideRules(rules); err != nil {
		return err
	}

	return withApp(func(app *application) error {
		if err := app.feedRepo.SetDataOverride(context.Background(), feedID, rules); err != nil {
			return err
		}

		if rules == "" {
			fmt.Printf("Cleared overrides of feed %d\n", feedID)
		} else {
			fmt.Printf("Updated overrides of feed %d\n", feedID)
		}
		return nil
	})
}

type serveCommand struct {
	Port        string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	Interval    int    `long:"interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Scheduler interval in seconds"`
	Workers     int    `long:"workers" env:"WORKER_COUNT" default:"2" description:"Number of background workers for feed processing"`
	TaskTimeout int    `long:"task-timeout" env:"TASK_TIMEOUT" default:"300" description:"Time limit for one feed in seconds"`
}

func (c *serveCommand) Execute(args []string) error {
	if c.Interval <= 0 || c.TaskTimeout <= 0 {
		return fmt.Errorf("interval and task timeout must be positive")
	}

	return withApp(func(app *application) error {
		logger := app.logger

		logger.Info("Starting background scheduler", "workers", c.Workers, "interval", c.Interval)
		scheduler := tasks.NewScheduler(app.ingester, app.feedRepo, tasks.RunOptions{},
			time.Duration(c.Interval)*time.Second, time.Duration(c.TaskTimeout)*time.Second, c.Workers, logger)
		scheduler.Start()
		defer scheduler.Stop()

		handler := api.NewHandler(app.feedRepo, app.episodeRepo, app.ingester, scheduler,
			app.cfg.Location, app.cfg.Version, logger)

		httpServer := &http.Server{
			Addr:         ":" + c.Port,
			Handler:      api.NewServer(handler, c.APIKey),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErrChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server", "port", c.Port, "auth_required", c.APIKey != "")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		var serveErr error
		select {
		case sig := <-sigChan:
			logger.Info("Received signal", "signal", sig.String())
		case serveErr = <-serverErrChan:
			logger.Error("Server error", "error", serveErr)
		}

		logger.Info("Shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		} else {
			logger.Info("HTTP server stopped")
		}

		return serveErr
	})
}
