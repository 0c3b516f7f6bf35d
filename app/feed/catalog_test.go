package feed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	content := `
feeds:
  - url: "https://example.com/security.xml"
    topic: Security
    lookback_days: 30
    overrides:
      link: enclosure.url
  - url: "https://example.com/dev.xml"
  - url: "https://example.com/news.xml"
    lookback_days: 0
`
	path := filepath.Join(t.TempDir(), "feeds.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(catalog.Feeds) != 3 {
		t.Fatalf("Expected 3 feeds, got %d", len(catalog.Feeds))
	}

	first := catalog.Feeds[0]
	if first.Topic != "Security" || first.Lookback() != 30 {
		t.Errorf("Expected topic Security and 30 lookback days, got %+v", first)
	}
	overrides, err := first.OverrideJSON()
	if err != nil {
		t.Fatal(err)
	}
	if overrides != `{"link":"enclosure.url"}` {
		t.Errorf("Expected encoded overrides, got %s", overrides)
	}

	second := catalog.Feeds[1]
	if second.LookbackDays != nil || second.Lookback() != DefaultLookbackDays {
		t.Errorf("Expected default lookback %d, got %d", DefaultLookbackDays, second.Lookback())
	}
	if overrides, _ := second.OverrideJSON(); overrides != "" {
		t.Errorf("Expected no overrides, got %s", overrides)
	}

	third := catalog.Feeds[2]
	if third.LookbackDays == nil || third.Lookback() != 0 {
		t.Errorf("Expected explicit zero lookback to be kept, got %+v", third.LookbackDays)
	}
}

func TestParseCatalogValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"missing url", "feeds:\n  - topic: x\n", ErrInvalidFeedLink},
		{"bad scheme", "feeds:\n  - url: ftp://example.com/feed\n", ErrInvalidFeedLink},
		{"unknown override", "feeds:\n  - url: https://example.com/feed\n    overrides:\n      recorded: x\n", ErrInvalidOverrideKey},
		{"empty override path", "feeds:\n  - url: https://example.com/feed\n    overrides:\n      link: \"\"\n", ErrInvalidOverrideKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.content))
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}

	if _, err := ParseCatalog([]byte("feeds:\n  - url: https://example.com/feed\n    lookback_days: -1\n")); err == nil {
		t.Error("Expected error for negative lookback days")
	}
	if _, err := ParseCatalog([]byte("feeds: [")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
