package hackernews

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/triad-cloud/newsdex/internal/domain"
)

// itemSelector matches headline anchors on the front page.
const itemSelector = ".titleline > a"

// Client fetches headlines from a Hacker News style front page.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a feed client for the given front page URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the front page and extracts up to limit (title, link) pairs.
func (c *Client) Fetch(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w: %w", c.baseURL, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d: %w", c.baseURL, resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed page: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	items := make([]domain.FeedItem, 0, limit)
	doc.Find(itemSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Text())
		href, ok := sel.Attr("href")
		if title == "" || !ok || href == "" {
			return true
		}

		items = append(items, domain.FeedItem{
			Title: title,
			Link:  c.resolveLink(href),
		})
		return len(items) < limit
	})

	return items, nil
}

// resolveLink makes relative hrefs (e.g. "item?id=123") absolute against the feed URL.
func (c *Client) resolveLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}
