package feed

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeDuration derives an episode length in whole seconds. The
// itunes:duration tag wins when present; otherwise the enclosure length is
// read as milliseconds. Callers store 0 when ErrMissingDuration is returned.
func NormalizeDuration(item RawItem) (int, error) {
	if text, ok := item.String("itunes.duration"); ok {
		return ParseDuration(text)
	}

	if text, ok := item.String("enclosure.length"); ok {
		millis, err := parseCount(text)
		if err != nil {
			return 0, fmt.Errorf("%w: enclosure length %q", ErrMissingDuration, text)
		}
		return millis / 1000, nil
	}

	return 0, ErrMissingDuration
}

// ParseDuration accepts "H:MM:SS", "MM:SS" or a bare number of seconds.
// Two-part values are always minutes and seconds.
func ParseDuration(text string) (int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")

	values := make([]int, len(parts))
	for i, part := range parts {
		value, err := parseCount(part)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot parse duration %q", ErrMissingDuration, text)
		}
		values[i] = value
	}

	switch len(values) {
	case 1:
		return values[0], nil
	case 2:
		return values[0]*60 + values[1], nil
	case 3:
		return values[0]*3600 + values[1]*60 + values[2], nil
	default:
		return 0, fmt.Errorf("%w: too many components in duration %q", ErrMissingDuration, text)
	}
}

func parseCount(text string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative value %d", value)
	}
	return value, nil
}
