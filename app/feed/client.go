package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ValidateFeedLink checks that link is an absolute http(s) URL.
func ValidateFeedLink(link string) error {
	if strings.TrimSpace(link) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFeedLink)
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeedLink, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidFeedLink, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidFeedLink)
	}

	return nil
}

type Client struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
	timeout    time.Duration
}

func NewClient(httpClient *http.Client, parser *Parser, userAgent string, timeout time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// Fetch downloads and parses the feed at link. Transport, status and parse
// failures are returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, link string) (*Metadata, []RawItem, error) {
	data, err := c.download(ctx, link)
	if err != nil {
		return nil, nil, &FetchError{URL: link, Err: err}
	}

	metadata, items, err := c.parser.Run(data)
	if err != nil {
		return nil, nil, &FetchError{URL: link, Err: err}
	}

	return metadata, items, nil
}

func (c *Client) download(ctx context.Context, link string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
