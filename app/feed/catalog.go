package feed

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultLookbackDays = 14

// Catalog is a YAML list of feeds to register in bulk.
type Catalog struct {
	Feeds []CatalogFeed `yaml:"feeds"`
}

type CatalogFeed struct {
	URL   string `yaml:"url"`
	Topic string `yaml:"topic"`

	// LookbackDays is nil when the entry omits it. An explicit 0 registers
	// the feed with nothing older than the registration itself.
	LookbackDays *int              `yaml:"lookback_days"`
	Overrides    map[string]string `yaml:"overrides"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range catalog.Feeds {
		if err := catalog.Feeds[i].validate(); err != nil {
			return nil, fmt.Errorf("invalid feed at index %d: %w", i, err)
		}
	}

	return &catalog, nil
}

// Lookback returns the configured lookback, or DefaultLookbackDays when the
// entry has none.
func (f CatalogFeed) Lookback() int {
	if f.LookbackDays == nil {
		return DefaultLookbackDays
	}
	return *f.LookbackDays
}

// OverrideJSON encodes the overrides in the form stored on the feed row.
func (f CatalogFeed) OverrideJSON() (string, error) {
	if len(f.Overrides) == 0 {
		return "", nil
	}

	data, err := json.Marshal(f.Overrides)
	if err != nil {
		return "", fmt.Errorf("failed to encode overrides: %w", err)
	}
	return string(data), nil
}

func (f CatalogFeed) validate() error {
	if err := ValidateFeedLink(f.URL); err != nil {
		return err
	}

	if f.Lookback() < 0 {
		return fmt.Errorf("lookback days must be non-negative")
	}

	for key, path := range f.Overrides {
		if _, ok := ParseEpisodeField(key); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidOverrideKey, key)
		}
		if path == "" {
			return fmt.Errorf("%w: path for %q must be a non-empty string", ErrInvalidOverrideKey, key)
		}
	}

	return nil
}
