package cfg

import (
	"time"
)

// Cfg is the resolved, read-only configuration handed to each component at
// construction.
type Cfg struct {
	// Storage
	DBPath string

	// Fetching
	UserAgent    string
	FetchTimeout time.Duration
	FeedWorkers  int
	ItemWorkers  int

	// Output
	Debug    bool
	Verbose  bool
	LogFile  string
	Location *time.Location

	Version string
}
