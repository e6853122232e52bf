package pipeline

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// TrimMiddleware trims whitespace from every field.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(c *types.NewsCandidate) (*types.NewsCandidate, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.Body = strings.TrimSpace(c.Body)
	c.ImageURL = strings.TrimSpace(c.ImageURL)
	c.Author = strings.TrimSpace(c.Author)
	return c, nil
}

// HTMLSanitizeMiddleware strips tags and entities from the title and
// author and collapses their whitespace. The body keeps its paragraph
// breaks.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(c *types.NewsCandidate) (*types.NewsCandidate, error) {
	c.Title = m.clean(c.Title)
	c.Author = m.clean(c.Author)
	return c, nil
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	cleaned := m.stripRe.ReplaceAllString(s, "")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// TitleLengthMiddleware truncates titles to Max runes.
type TitleLengthMiddleware struct {
	Max int
}

func (m *TitleLengthMiddleware) Name() string { return "title_length" }

func (m *TitleLengthMiddleware) Process(c *types.NewsCandidate) (*types.NewsCandidate, error) {
	if m.Max > 0 {
		c.Title = strings.TrimSpace(types.TruncateRunes(c.Title, m.Max))
	}
	return c, nil
}

// ImageURLMiddleware clears image URLs that are not absolute http(s).
type ImageURLMiddleware struct{}

func (m *ImageURLMiddleware) Name() string { return "image_url" }

func (m *ImageURLMiddleware) Process(c *types.NewsCandidate) (*types.NewsCandidate, error) {
	if c.ImageURL == "" {
		return c, nil
	}
	u, err := url.Parse(c.ImageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.ImageURL = ""
	}
	return c, nil
}

// RequiredFieldsMiddleware drops candidates without a title.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(c *types.NewsCandidate) (*types.NewsCandidate, error) {
	if c.Title == "" {
		return nil, nil
	}
	return c, nil
}
