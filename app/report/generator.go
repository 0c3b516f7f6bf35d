package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/podcast-log/app/database"
)

// Entry is one line of the recording log.
type Entry struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Subject string `json:"subject"`
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Entries(episodes []database.EpisodeWithFeed) []Entry {
	entries := make([]Entry, 0, len(episodes))
	for _, episode := range episodes {
		hours, minutes := SplitDuration(episode.Duration)
		pub := episode.PubDate.UTC()

		entries = append(entries, Entry{
			Title:   norm.NFC.String(strings.TrimSpace(episode.Title)),
			Date:    fmt.Sprintf("%d/%d/%d", pub.Year(), int(pub.Month()), pub.Day()),
			Hours:   hours,
			Minutes: minutes,
			Subject: episode.FeedTopic,
		})
	}
	return entries
}

func (g *Generator) Run(episodes []database.EpisodeWithFeed) ([]byte, error) {
	data, err := json.MarshalIndent(g.Entries(episodes), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// SplitDuration turns seconds into whole hours plus the remaining minutes,
// rounding any leftover seconds up to a full minute.
func SplitDuration(seconds int) (hours, minutes int) {
	if seconds <= 0 {
		return 0, 0
	}

	hours = seconds / 3600
	remaining := seconds % 3600
	minutes = (remaining + 59) / 60
	return hours, minutes
}
