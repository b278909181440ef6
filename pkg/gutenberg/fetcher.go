package gutenberg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/html"

	"plottheplot/pkg/schema"
)

const DefaultBaseURL = "https://www.gutenberg.org"

var (
	// ErrSourceUnavailable means neither the primary nor the fallback content
	// URL returned the text.
	ErrSourceUnavailable = errors.New("could not fetch text from Project Gutenberg")
	// ErrMetadataUnavailable means the bibliographic page was missing or did
	// not carry the expected title/author markers.
	ErrMetadataUnavailable = errors.New("could not read book metadata from Project Gutenberg")
)

// Client fetches story texts and bibliographic metadata from Project
// Gutenberg. Successful fetches are cached by book id; a text fetch tries the
// primary content URL once and the fallback URL once, with no retry loop.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxBytes   int64
	cache      *gocache.Cache
}

// NewClient creates a Client with the given timeout, User-Agent, response size
// cap, and cache TTL.
func NewClient(timeout time.Duration, userAgent string, maxBytes int64, cacheTTL time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		baseURL:   DefaultBaseURL,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		cache:     gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// ChangeBaseURL points the client at a different host, e.g. a mirror.
func (c *Client) ChangeBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// FetchText retrieves the raw text for a book. The plain content URL is tried
// first, then the UTF-8 variant; if both fail the error wraps
// ErrSourceUnavailable.
func (c *Client) FetchText(ctx context.Context, bookID string) (string, error) {
	cacheKey := "text:" + bookID
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.(string), nil
	}

	primary := fmt.Sprintf("%s/files/%s/%s.txt", c.baseURL, bookID, bookID)
	fallback := fmt.Sprintf("%s/files/%s/%s-0.txt", c.baseURL, bookID, bookID)

	body, err := c.get(ctx, primary)
	if err != nil {
		var fallbackErr error
		body, fallbackErr = c.get(ctx, fallback)
		if fallbackErr != nil {
			return "", fmt.Errorf("%w: primary: %v, fallback: %v", ErrSourceUnavailable, err, fallbackErr)
		}
	}

	c.cache.SetDefault(cacheKey, body)
	return body, nil
}

// FetchMetadata retrieves the title and author for a book from its
// bibliographic page.
func (c *Client) FetchMetadata(ctx context.Context, bookID string) (schema.Metadata, error) {
	cacheKey := "meta:" + bookID
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.(schema.Metadata), nil
	}

	body, err := c.get(ctx, fmt.Sprintf("%s/ebooks/%s", c.baseURL, bookID))
	if err != nil {
		return schema.Metadata{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	meta, err := parseMetadata(body)
	if err != nil {
		return schema.Metadata{}, err
	}

	c.cache.SetDefault(cacheKey, meta)
	return meta, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	limitedReader := io.LimitReader(resp.Body, c.maxBytes)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}

// parseMetadata walks the bibliographic page for the og:title meta tag and the
// author link tagged with rel="marcrel:aut".
func parseMetadata(htmlContent string) (schema.Metadata, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return schema.Metadata{}, fmt.Errorf("%w: parse page: %v", ErrMetadataUnavailable, err)
	}

	var meta schema.Metadata
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if attrVal(n, "property") == "og:title" {
					meta.Title = strings.TrimSpace(attrVal(n, "content"))
				}
			case "a":
				if meta.Author == "" && strings.Contains(attrVal(n, "rel"), "marcrel:aut") {
					meta.Author = strings.TrimSpace(nodeText(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" || meta.Author == "" {
		return schema.Metadata{}, fmt.Errorf("%w: title or author marker missing", ErrMetadataUnavailable)
	}
	return meta, nil
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
