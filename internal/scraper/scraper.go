package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/dailyletter/internal/normalize"
	"github.com/deusflow/dailyletter/internal/outcome"
)

const (
	// DefaultReaderPrefix turns any article URL into a readable text rendition.
	DefaultReaderPrefix = "https://r.jina.ai/"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxChars     = 2000

	// maxBodyBytes bounds how much of a page is read before extraction.
	maxBodyBytes = 4 << 20
)

// Reader fetches the readable text of an article. With an empty prefix it
// requests the page directly and extracts paragraphs itself.
type Reader struct {
	client   *http.Client
	prefix   string
	maxChars int
}

func NewReader(prefix string, timeout time.Duration, maxChars int) *Reader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Reader{
		client:   &http.Client{Timeout: timeout},
		prefix:   prefix,
		maxChars: maxChars,
	}
}

// ReaderURL builds the request URL for link.
func (r *Reader) ReaderURL(link string) string {
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = "http://" + link
	}
	return r.prefix + link
}

// ReadArticle returns the normalized article text, cut to the configured cap.
func (r *Reader) ReadArticle(ctx context.Context, link string) outcome.Result {
	if strings.TrimSpace(link) == "" {
		return outcome.Fail(outcome.Skipped, errors.New("empty link"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ReaderURL(link), nil)
	if err != nil {
		return outcome.Fail(outcome.Transport, fmt.Errorf("build request: %w", err))
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return outcome.FromError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return outcome.Fail(outcome.BadStatus, fmt.Errorf("HTTP error: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return outcome.FromError(err)
	}

	var text string
	if r.prefix == "" || isHTML(resp.Header.Get("Content-Type")) {
		text, err = extractParagraphs(string(body))
		if err != nil {
			return outcome.Fail(outcome.BadResponse, err)
		}
	} else {
		text = string(body)
	}

	text = normalize.Prefix(normalize.Text(text), r.maxChars)
	if text == "" {
		return outcome.Fail(outcome.BadResponse, errors.New("can't get content"))
	}
	return outcome.Success(text)
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}

// extractParagraphs pulls article paragraphs out of an HTML page, trying the
// most specific containers first.
func extractParagraphs(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	doc.Find("script, style, nav, header, footer, aside").Remove()

	selectors := []string{
		"article p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	var paragraphs []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	if len(paragraphs) == 0 {
		return strings.TrimSpace(doc.Find("body").Text()), nil
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
