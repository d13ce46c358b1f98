package news

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// maxArticleChars keeps a scraped body small enough to fit in a prompt.
const maxArticleChars = 4000

// Scraper fetches an article page and extracts its readable text.
type Scraper struct {
	timeout time.Duration
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{timeout: timeout}
}

// ArticleText downloads the article and returns its body text. Zacks pages
// keep the story in commentary divs; everywhere else we take paragraph text
// from the usual article containers.
func (s *Scraper) ArticleText(ctx context.Context, articleURL string) (string, error) {
	c := colly.NewCollector()
	c.SetRequestTimeout(s.timeout)
	c.Context = ctx

	var text string
	var scrapeErr error

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			scrapeErr = err
			return
		}
		text = extractBody(doc, articleURL)
	})

	c.OnError(func(_ *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(articleURL); err != nil {
		return "", fmt.Errorf("visit %s: %w", articleURL, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return "", scrapeErr
	}
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", articleURL)
	}
	return text, nil
}

func extractBody(doc *goquery.Document, articleURL string) string {
	var parts []string

	if strings.Contains(articleURL, "zacks") {
		doc.Find("div.commentary_body").Each(func(_ int, sel *goquery.Selection) {
			if t := strings.TrimSpace(sel.Text()); t != "" {
				parts = append(parts, t)
			}
		})
	} else {
		doc.Find("article p, div.article-body p, div.content-body p, div.story-content p").Each(func(_ int, sel *goquery.Selection) {
			t := strings.TrimSpace(sel.Text())
			if len(t) > 20 {
				parts = append(parts, t)
			}
		})
		if len(parts) == 0 {
			doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
				t := strings.TrimSpace(sel.Text())
				if len(t) > 20 {
					parts = append(parts, t)
				}
			})
		}
	}

	body := strings.Join(parts, "\n\n")
	if len(body) > maxArticleChars {
		body = body[:maxArticleChars]
	}
	return body
}
