package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const maxPageBytes = 8 << 20

// Client fetches work stats by scraping the AO3 work page.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewClient creates a new AO3 client.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch returns the current metrics for workID.
func (c *Client) Fetch(ctx context.Context, workID string) (Snapshot, error) {
	if !IsWorkID(workID) {
		return Snapshot{}, &FetchError{Kind: KindNotFound, WorkID: workID, Err: errors.New("work ID must be digits")}
	}

	pageURL := fmt.Sprintf("%s/works/%s?view_adult=true", c.baseURL, workID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Snapshot{}, &FetchError{Kind: KindUpstream, WorkID: workID, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Snapshot{}, &FetchError{Kind: KindConnectivity, WorkID: workID, Err: err}
	}
	defer resp.Body.Close()

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		return Snapshot{}, &FetchError{Kind: kind, WorkID: workID, Status: resp.StatusCode}
	}
	if resp.Request != nil && strings.HasPrefix(resp.Request.URL.Path, "/users/login") {
		return Snapshot{}, &FetchError{Kind: KindRestricted, WorkID: workID, Err: errors.New("work is only visible to logged-in users")}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Snapshot{}, &FetchError{Kind: KindConnectivity, WorkID: workID, Err: err}
	}

	parsedURL, _ := url.Parse(pageURL)
	snap, err := parseWorkPage(body, parsedURL)
	if err != nil {
		return Snapshot{}, &FetchError{Kind: KindParse, WorkID: workID, Err: err}
	}
	return snap, nil
}

func classifyStatus(code int) (Kind, bool) {
	switch {
	case code >= 200 && code < 300:
		return 0, false
	case code == http.StatusNotFound:
		return KindNotFound, true
	case code == http.StatusTooManyRequests, code >= 500:
		return KindConnectivity, true
	default:
		return KindUpstream, true
	}
}

func parseWorkPage(body []byte, pageURL *url.URL) (Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing html: %w", err)
	}

	stats := doc.Find("dl.stats").First()
	if stats.Length() == 0 {
		return Snapshot{}, errors.New("no stats block on page")
	}
	field := func(class string) string {
		return strings.TrimSpace(stats.Find("dd." + class).First().Text())
	}

	published, err := time.Parse("2006-01-02", field("published"))
	if err != nil {
		return Snapshot{}, fmt.Errorf("published date: %w", err)
	}

	var snap Snapshot
	snap.Published = published

	chapters, _, _ := strings.Cut(field("chapters"), "/")
	if snap.Chapters, err = parseCount(chapters); err != nil {
		return Snapshot{}, fmt.Errorf("chapters: %w", err)
	}
	for class, dst := range map[string]*int{
		"kudos":    &snap.Kudos,
		"comments": &snap.Comments,
		"hits":     &snap.Hits,
		"words":    &snap.Words,
	} {
		if *dst, err = parseCount(field(class)); err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", class, err)
		}
	}

	snap.Title = strings.TrimSpace(doc.Find("h2.title").First().Text())
	if snap.Title == "" {
		snap.Title = readableTitle(body, pageURL)
	}
	return snap, nil
}

// parseCount reads an AO3 counter such as "1,234". AO3 omits kudos and
// comments entirely when they are zero, so an empty value is 0.
func parseCount(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func readableTitle(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		log.Printf("No readable title for %s: %v", pageURL, err)
		return ""
	}
	return strings.TrimSpace(article.Title)
}
