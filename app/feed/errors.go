package feed

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDuration      = errors.New("no usable duration")
	ErrMissingPublishedDate = errors.New("no usable publication date")
	ErrInvalidOverrideKey   = errors.New("invalid override key")
	ErrOverrideValue        = errors.New("override value not applied")
	ErrMalformedOverride    = errors.New("malformed override rules")
	ErrInvalidFeedLink      = errors.New("invalid feed link")
	ErrIncompleteEpisode    = errors.New("incomplete episode")
)

// FetchError reports that a feed could not be retrieved or parsed. The
// feed's watermark must not move when a run ends with one of these.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
