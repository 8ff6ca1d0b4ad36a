// Package discover lists candidate works from an AO3 tag or search feed.
package discover

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/ficstats/internal/source"
)

const defaultLimit = 20

// Candidate is a work found in a feed.
type Candidate struct {
	WorkID    string
	Title     string
	Author    string
	Published string // YYYY-MM-DD or empty
	Summary   string
}

// Parser reads Atom/RSS feeds.
type Parser struct {
	parser *gofeed.Parser
}

// NewParser creates a feed parser that identifies itself with userAgent.
func NewParser(userAgent string, timeout time.Duration) *Parser {
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	p.Client = &http.Client{Timeout: timeout}
	return &Parser{parser: p}
}

// Parse returns up to limit candidates from feedURL in feed order. Entries
// without a recognizable work link are dropped, as are repeats.
func (p *Parser) Parse(ctx context.Context, feedURL string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	seen := make(map[string]bool)
	var out []Candidate
	for _, item := range feed.Items {
		if len(out) >= limit {
			break
		}
		c := parseItem(item)
		if c == nil || seen[c.WorkID] {
			continue
		}
		seen[c.WorkID] = true
		out = append(out, *c)
	}
	return out, nil
}

func parseItem(item *gofeed.Item) *Candidate {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	id, err := source.ParseWorkID(link)
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	c := &Candidate{WorkID: id, Title: title}
	if item.PublishedParsed != nil {
		c.Published = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		c.Published = item.UpdatedParsed.Format("2006-01-02")
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		c.Author = item.Authors[0].Name
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	c.Summary = plainText(body)
	return c
}

// plainText flattens an HTML fragment to a single line of text.
func plainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
