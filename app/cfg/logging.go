package cfg

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

func (c *Cfg) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// SetupLogger writes text logs to stderr and, when a log file is
// configured, JSON logs to that file as well. The returned function closes
// the file.
func SetupLogger(c *Cfg, stderr io.Writer) (*slog.Logger, func() error, error) {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: c.LogLevel()})

	if c.LogFile == "" {
		return slog.New(stderrHandler), func() error { return nil }, nil
	}

	file, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return SetupLoggerWithWriters(stderr, file, c.LogLevel()), file.Close, nil
}

func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
