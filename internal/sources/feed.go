package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
)

const userAgent = "TrendZee-LiveTrends/1.0"

// primaryShare is the part of a fetch budget an API call may use before
// the feed fallback takes over.
const primaryShare = 0.6

// primaryContext bounds a primary API call to a share of the remaining
// budget so a hanging provider still leaves time for the feed fallback.
func primaryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	limit := time.Duration(float64(timeout) * primaryShare)
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Duration(float64(time.Until(deadline)) * primaryShare); limit <= 0 || remaining < limit {
			limit = remaining
		}
	}
	if limit <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, limit)
}

type rssDocument struct {
	Channel struct {
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
}

// feedItem is one entry of an RSS 2.0 channel
type feedItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Traffic     string `xml:"approx_traffic"` // Google Trends extension
}

// feedReader fetches and decodes public syndication feeds
type feedReader struct {
	client *resty.Client
}

func newFeedReader(timeout time.Duration) *feedReader {
	return &feedReader{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
	}
}

func (f *feedReader) read(ctx context.Context, feedURL string) ([]feedItem, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(feedURL)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode())
	}

	return parseFeed(resp.Body())
}

func parseFeed(body []byte) ([]feedItem, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]feedItem, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		item.Title = strings.TrimSpace(item.Title)
		item.Link = strings.TrimSpace(item.Link)
		item.Description = stripHTML(item.Description)
		items = append(items, item)
	}

	return items, nil
}

// stripHTML reduces an HTML fragment to its visible text
func stripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if !strings.Contains(fragment, "<") {
		return fragment
	}

	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var words []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			words = append(words, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(words, " ")
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
